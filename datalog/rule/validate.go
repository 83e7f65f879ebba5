package rule

import (
	"fmt"

	"github.com/nmoreau/semidatalog/datalog/errs"
)

// Kind classifies a relation as extensional (user-populated only) or
// intensional (rule-derived).
type Kind int

const (
	Extensional Kind = iota
	Intensional
)

func (k Kind) String() string {
	if k == Intensional {
		return "intensional"
	}
	return "extensional"
}

// RelationInfo is everything the rest of the engine needs to know
// about one relation once a Program has been validated.
type RelationInfo struct {
	Symbol Symbol
	Arity  int
	Kind   Kind
}

// Schema is the validated, per-relation metadata extracted from a
// Program, plus the rule indices grouped into evaluation strata. It is
// the only artifact validate.go hands back to the planner/runtime: the
// Program itself stays exactly as the caller wrote it.
type Schema struct {
	Relations map[Symbol]*RelationInfo

	// Strata holds rule indices (into Program.Rules), grouped so that
	// Strata[i] depends only on relations defined in Strata[0..i] and
	// on itself. Evaluate in this order.
	Strata [][]int
}

// Validate checks a Program for range-restriction and stratifiability
// and returns its derived Schema. It never mutates p.
func Validate(p *Program) (*Schema, error) {
	relations := make(map[Symbol]*RelationInfo)

	ensure := func(sym Symbol, arity int, kind Kind) error {
		info, ok := relations[sym]
		if !ok {
			relations[sym] = &RelationInfo{Symbol: sym, Arity: arity, Kind: kind}
			return nil
		}
		if info.Arity != arity {
			return fmt.Errorf("%w: relation %q used with arity %d and %d", errs.ErrProgramInvalid, sym, info.Arity, arity)
		}
		if kind == Intensional {
			info.Kind = Intensional
		}
		return nil
	}

	for sym, arity := range p.Extensional {
		if err := ensure(sym, arity, Extensional); err != nil {
			return nil, err
		}
	}

	// First pass: classify every head relation as Intensional before
	// looking at bodies, so a relation used as a body atom in one rule
	// and as a head in another is correctly promoted regardless of
	// rule order.
	for i, r := range p.Rules {
		if err := ensure(r.Head.Relation, r.Head.Arity(), Intensional); err != nil {
			return nil, fmt.Errorf("rule %d head: %w", i, err)
		}
	}
	for i, r := range p.Rules {
		for _, b := range r.Body {
			if err := ensure(b.Relation, b.Arity(), Extensional); err != nil {
				return nil, fmt.Errorf("rule %d body: %w", i, err)
			}
		}
	}

	for i, r := range p.Rules {
		if err := checkRangeRestriction(r); err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %v", errs.ErrProgramInvalid, i, r, err)
		}
	}

	strata, err := stratify(p)
	if err != nil {
		return nil, err
	}

	return &Schema{Relations: relations, Strata: strata}, nil
}

// checkRangeRestriction enforces range restriction: every variable in
// the head, and every variable in a negated body atom, must appear in
// some positive body atom of the same rule.
func checkRangeRestriction(r Rule) error {
	positive := make(map[Var]bool)
	for _, b := range r.Body {
		if !b.Negated {
			for _, v := range b.Atom.Vars() {
				positive[v] = true
			}
		}
	}

	for _, v := range r.Head.Vars() {
		if !positive[v] {
			return fmt.Errorf("head variable %s is not range-restricted", v)
		}
	}
	for _, b := range r.Body {
		if !b.Negated {
			continue
		}
		for _, v := range b.Atom.Vars() {
			if !positive[v] {
				return fmt.Errorf("negated variable %s in %s is not range-restricted", v, b.Atom)
			}
		}
	}
	return nil
}

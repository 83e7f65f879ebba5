// Package rule is the rule/program intermediate representation the
// core compiler (datalog/planner) consumes. Construction of this IR
// from surface syntax is out of scope: callers build Programs
// directly as Go values before the engine ever sees them.
package rule

import (
	"fmt"

	"github.com/nmoreau/semidatalog/datalog"
)

// Symbol identifies a relation.
type Symbol = datalog.Symbol

// Term is one element of an atom's argument list: either a Var or a
// Const. It is deliberately a closed, two-member sum type rather than
// an open interface, because the rule IR has no need for blanks:
// unbound positions are simply fresh variable names.
type Term interface {
	fmt.Stringer
	isRuleTerm()
}

// Var is a rule variable, e.g. the x in tc(x, y).
type Var string

func (Var) isRuleTerm()       {}
func (v Var) String() string  { return "?" + string(v) }

// Const is a literal value appearing in a rule position.
type Const struct {
	Value datalog.Value
}

func (Const) isRuleTerm()      {}
func (c Const) String() string { return fmt.Sprintf("%v", c.Value) }

// Atom is a relation symbol applied to an argument list. HeadAtom and
// the positive/negative body atoms below are all shaped like this;
// BodyAtom adds the Negated flag.
type Atom struct {
	Relation Symbol
	Args     []Term
}

func (a Atom) Arity() int { return len(a.Args) }

func (a Atom) String() string {
	s := string(a.Relation) + "("
	for i, arg := range a.Args {
		if i > 0 {
			s += ", "
		}
		s += arg.String()
	}
	return s + ")"
}

// BodyAtom is one conjunct of a rule body: a positive atom is
// required, a negated one is required absent.
type BodyAtom struct {
	Atom
	Negated bool
}

func (b BodyAtom) String() string {
	if b.Negated {
		return "not " + b.Atom.String()
	}
	return b.Atom.String()
}

// Rule is `Head <- Body1, ..., BodyN`. Body order is preserved
// verbatim in the IR. Compilation keeps positive atoms in textual
// order and moves negated atoms after them (see planner.Compile); no
// other reordering heuristic is applied.
type Rule struct {
	Head Atom
	Body []BodyAtom
}

func (r Rule) String() string {
	s := r.Head.String() + " <- "
	for i, b := range r.Body {
		if i > 0 {
			s += ", "
		}
		s += b.String()
	}
	return s
}

// Vars returns the distinct variables occurring in an atom's
// arguments, in first-occurrence order.
func (a Atom) Vars() []Var {
	var out []Var
	seen := make(map[Var]bool)
	for _, arg := range a.Args {
		if v, ok := arg.(Var); ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Program is an immutable set of rules plus, optionally, explicit
// arity declarations for extensional relations that never occur as a
// rule head (so they would otherwise have no way to announce their
// arity to the runtime). Once passed to New, a Program is never
// mutated again; store state is the only thing that changes
// afterwards.
type Program struct {
	Rules []Rule

	// Extensional optionally declares the arity of relations that are
	// only ever populated via Insert and never appear as a rule head.
	// Relations that do appear in some rule body or head do not need
	// an entry here; their arity is inferred from usage.
	Extensional map[Symbol]int
}

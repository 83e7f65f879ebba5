// Package magic is an optional magic-sets rewrite kept outside the
// core engine: a source-to-source transform over the same rule IR,
// applied before compilation. A caller may apply Transform to a
// rule.Program before handing it to runtime.New, to bound a recursive
// evaluation to the facts reachable from one query's bound columns
// instead of computing the full extension of every intensional
// relation.
package magic

import "github.com/nmoreau/semidatalog/datalog/rule"

// Adornment marks one argument position of an atom as bound (backed
// by a constant or a variable already bound earlier in the
// derivation) or free.
type Adornment int

const (
	Bound Adornment = iota
	Free
)

// AdornedAtom pairs an atom with one Adornment per argument position.
type AdornedAtom struct {
	Atom      rule.Atom
	Adornment []Adornment
}

// PatternString renders the adornment as a "b"/"f" string, e.g. "bf"
// for an atom whose first argument is bound and second is free.
func (a AdornedAtom) PatternString() string {
	out := make([]byte, len(a.Adornment))
	for i, ad := range a.Adornment {
		if ad == Bound {
			out[i] = 'b'
		} else {
			out[i] = 'f'
		}
	}
	return string(out)
}

// fromAtomAndBoundVars adorns atom's argument positions against the
// given bound-variable set: a Const is always Bound, a Var is Bound
// iff it already appears in bound.
func fromAtomAndBoundVars(atom rule.Atom, bound map[rule.Var]bool) AdornedAtom {
	adornment := make([]Adornment, len(atom.Args))
	for i, arg := range atom.Args {
		switch a := arg.(type) {
		case rule.Const:
			adornment[i] = Bound
		case rule.Var:
			if bound[a] {
				adornment[i] = Bound
			} else {
				adornment[i] = Free
			}
		}
	}
	return AdornedAtom{Atom: atom, Adornment: adornment}
}

// boundVars returns the set of variables an AdornedAtom marks Bound.
func boundVars(a AdornedAtom) map[rule.Var]bool {
	out := make(map[rule.Var]bool)
	for i, ad := range a.Adornment {
		if ad != Bound {
			continue
		}
		if v, ok := a.Atom.Args[i].(rule.Var); ok {
			out[v] = true
		}
	}
	return out
}

func atomEqual(a, b rule.Atom) bool {
	if a.Relation != b.Relation || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	return true
}

func adornedEqual(a, b AdornedAtom) bool {
	if !atomEqual(a.Atom, b.Atom) || len(a.Adornment) != len(b.Adornment) {
		return false
	}
	for i := range a.Adornment {
		if a.Adornment[i] != b.Adornment[i] {
			return false
		}
	}
	return true
}

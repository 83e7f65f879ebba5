// Package datalog holds the types shared by every layer of the engine:
// the interned Term universe, ground atoms, and relation symbols.
package datalog

import (
	"fmt"
	"time"
)

// Value is anything a Term can wrap. Valid concrete types are string,
// int64, float64, bool and time.Time. Unlike datalog.Term, a Value is
// not interned and carries no identity beyond normal Go equality.
type Value interface{}

// ValueType tags the concrete type carried by a Value/Term.
type ValueType byte

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
)

// TypeOf returns the tag for v, panicking on an unsupported type.
func TypeOf(v Value) ValueType {
	switch v.(type) {
	case string:
		return TypeString
	case int64:
		return TypeInt
	case float64:
		return TypeFloat
	case bool:
		return TypeBool
	case time.Time:
		return TypeTime
	default:
		panic(fmt.Sprintf("datalog: unsupported term value type %T", v))
	}
}

// Term is a ground value drawn from the single interned universe. Two
// terms are equal iff their ids are equal; the id is assigned the
// first time a given Value is interned and never reassigned, so
// equality and hashing both reduce to a uint32 comparison.
type Term struct {
	id uint32
}

// id 0 is reserved: the zero Term is never returned by the interner,
// so a zero Term reliably means "not yet bound".
const invalidTermID uint32 = 0

// Valid reports whether t was produced by an Interner (as opposed to
// being a Go zero value).
func (t Term) Valid() bool { return t.id != invalidTermID }

// ID returns the dense integer identity of the term, suitable for use
// as a map/array key in the store's indices.
func (t Term) ID() uint32 { return t.id }

// String renders the term for debugging/annotations. It requires the
// owning Interner to resolve back to a Value; see Interner.Resolve.
func (t Term) String() string {
	if !t.Valid() {
		return "<unbound>"
	}
	return fmt.Sprintf("#%d", t.id)
}

// Symbol identifies a relation (e.g. "edge", "tc"). It is a thin
// string wrapper rather than an interned id: there are orders of
// magnitude fewer relations than terms, so there is no
// comparison-cost reason to intern them.
type Symbol string

func (s Symbol) String() string { return string(s) }

// Compare orders two symbols lexicographically.
func (s Symbol) Compare(other Symbol) int {
	switch {
	case s < other:
		return -1
	case s > other:
		return 1
	default:
		return 0
	}
}

// Atom is a ground fact: a relation symbol plus a fixed-arity tuple of
// interned terms. Atoms are the unit the store, the planner, and the
// evaluator all exchange.
type Atom struct {
	Relation Symbol
	Terms    []Term
}

// Arity returns the atom's arity.
func (a Atom) Arity() int { return len(a.Terms) }

// String gives a compact bracketed representation for
// annotations/logging.
func (a Atom) String() string {
	return fmt.Sprintf("%s%v", a.Relation, a.Terms)
}

package storage

import (
	"fmt"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/errs"
	"github.com/nmoreau/semidatalog/datalog/planner"
	"github.com/nmoreau/semidatalog/datalog/rule"
)

// Store is the top-level indexed relation store: one Relation per
// symbol named in a validated Schema, with relation lookup, arity
// checking, and unknown-relation rejection handled once here rather
// than at every call site.
type Store struct {
	relations map[rule.Symbol]*Relation
}

// NewStore builds a Store with one empty Relation per entry in schema,
// and registers the bound-column-pattern indices every compiled plan
// will probe.
func NewStore(schema *rule.Schema, indices []planner.IndexDescriptor) *Store {
	s := &Store{relations: make(map[rule.Symbol]*Relation, len(schema.Relations))}
	for sym, info := range schema.Relations {
		s.relations[sym] = newRelation(sym, info.Arity, info.Kind)
	}
	for _, d := range indices {
		if r, ok := s.relations[d.Relation]; ok {
			r.RegisterIndex(d.Bound)
		}
	}
	return s
}

func (s *Store) lookup(sym rule.Symbol, terms []datalog.Term) (*Relation, error) {
	r, ok := s.relations[sym]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownRelation, sym)
	}
	if terms != nil && len(terms) != r.Arity {
		return nil, fmt.Errorf("%w: relation %s expects arity %d, got %d", errs.ErrArityMismatch, sym, r.Arity, len(terms))
	}
	return r, nil
}

// Relation returns the named relation, or ErrUnknownRelation.
func (s *Store) Relation(sym rule.Symbol) (*Relation, error) {
	r, ok := s.relations[sym]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownRelation, sym)
	}
	return r, nil
}

// Contains reports whether terms currently holds in sym's stable set.
func (s *Store) Contains(sym rule.Symbol, terms []datalog.Term) (bool, error) {
	r, err := s.lookup(sym, terms)
	if err != nil {
		return false, err
	}
	return r.Contains(terms), nil
}

// Insert asserts an extensional fact. It rejects unknown relations and
// arity mismatches immediately; it does not reject intensional
// relations; the caller (the runtime package) is expected to track
// which relations came from the program's Extensional declarations,
// keeping cheap structural checks here and semantic ones above.
func (s *Store) Insert(sym rule.Symbol, terms []datalog.Term) (fresh bool, err error) {
	r, err := s.lookup(sym, terms)
	if err != nil {
		return false, err
	}
	return r.ExtensionalAssert(terms), nil
}

// Remove retracts an extensional fact's implicit support.
func (s *Store) Remove(sym rule.Symbol, terms []datalog.Term) (removed bool, err error) {
	r, err := s.lookup(sym, terms)
	if err != nil {
		return false, err
	}
	return r.ExtensionalRetract(terms), nil
}

// Safe reports whether every relation has quiesced: no pending Δ⁺ or
// Δ⁻ anywhere in the store.
func (s *Store) Safe() bool {
	for _, r := range s.relations {
		if r.HasPendingDelta() || r.HasPendingDeltaMinus() {
			return false
		}
	}
	return true
}

// Relations exposes the full relation set for the evaluator's round
// loop and for iterating strata.
func (s *Store) Relations() map[rule.Symbol]*Relation {
	return s.relations
}

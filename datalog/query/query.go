// Package query is the pattern query engine: it lowers a pattern atom
// (relation symbol plus, per column, either a bound constant or a
// wildcard) to the store's probe machinery and resolves the matching
// facts back to user-visible values.
package query

import (
	"fmt"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/errs"
	"github.com/nmoreau/semidatalog/datalog/rule"
	"github.com/nmoreau/semidatalog/datalog/storage"
)

// Column is one argument position of a query Pattern: either bound to
// a concrete value or a wildcard.
type Column struct {
	bound bool
	value datalog.Value
}

// Bound matches only facts whose value at this position equals v.
func Bound(v datalog.Value) Column { return Column{bound: true, value: v} }

// Any matches any value at this position.
func Any() Column { return Column{} }

// Pattern is a query: a relation symbol plus one Column per argument.
type Pattern struct {
	Relation rule.Symbol
	Columns  []Column
}

// New builds a Pattern, e.g. New("tc", Bound("a"), Any()).
func New(rel rule.Symbol, cols ...Column) Pattern {
	return Pattern{Relation: rel, Columns: cols}
}

// Tuple is one resolved result row, in declared column order.
type Tuple []datalog.Value

// Run answers a pattern query against store: results are always S as
// it stands right now, never an in-progress round's Δ⁺. A pattern naming a constant never interned by this
// runtime matches nothing (not an error: it simply cannot equal any
// fact the store could hold).
func Run(store *storage.Store, interner *datalog.Interner, p Pattern) ([]Tuple, error) {
	r, err := store.Relation(p.Relation)
	if err != nil {
		return nil, err
	}
	if len(p.Columns) != r.Arity {
		return nil, fmt.Errorf("%w: relation %s expects arity %d, got %d pattern columns", errs.ErrArityMismatch, p.Relation, r.Arity, len(p.Columns))
	}

	var positions []int
	var key []datalog.Term
	for pos, col := range p.Columns {
		if !col.bound {
			continue
		}
		t, ok := interner.Lookup(col.value)
		if !ok {
			return nil, nil
		}
		positions = append(positions, pos)
		key = append(key, t)
	}

	facts := r.ScanStable(positions, key)
	out := make([]Tuple, 0, len(facts))
	for _, f := range facts {
		tup := make(Tuple, len(f.Terms))
		for i, t := range f.Terms {
			tup[i] = interner.Resolve(t)
		}
		out = append(out, tup)
	}
	return out, nil
}

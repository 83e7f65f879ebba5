package storage

import (
	"fmt"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/errs"
	"github.com/nmoreau/semidatalog/datalog/rule"
)

// Relation holds one relation's stable set S and its in-flight delta
// views:
//
//   - stable is S.
//   - deltaIn is the Δ⁺ that fed the round currently in progress (the
//     view delta-variant plans probe as "Δ").
//   - deltaOut accumulates facts freshly (re)supported during the
//     round in progress; SwapDeltas promotes it to deltaIn for the
//     next round.
//   - deltaMinus holds facts mid-removal during a deletion epoch: they
//     are invisible to probes of stable/deltaIn but still resolvable
//     by the evaluator for unwinding.
type Relation struct {
	Symbol rule.Symbol
	Arity  int
	Kind   rule.Kind

	stable     *indexedSet
	deltaIn    *indexedSet
	deltaOut   *indexedSet
	deltaMinus *indexedSet

	patterns [][]int // every bound-column pattern registered so far
}

func newRelation(sym rule.Symbol, arity int, kind rule.Kind) *Relation {
	return &Relation{
		Symbol:     sym,
		Arity:      arity,
		Kind:       kind,
		stable:     newIndexedSet(),
		deltaIn:    newIndexedSet(),
		deltaOut:   newIndexedSet(),
		deltaMinus: newIndexedSet(),
	}
}

// RegisterIndex ensures every view of the relation has an index for
// positions, backfilling from whatever facts already exist.
func (r *Relation) RegisterIndex(positions []int) {
	if len(positions) == 0 {
		return
	}
	r.patterns = append(r.patterns, positions)
	r.stable.registerPattern(positions)
	r.deltaIn.registerPattern(positions)
	r.deltaOut.registerPattern(positions)
	r.deltaMinus.registerPattern(positions)
}

// Contains reports whether fact currently holds in S. Queries (and
// Contains) only ever see the settled state, never an in-progress
// round's Δ⁺.
func (r *Relation) Contains(terms []datalog.Term) bool {
	_, ok := r.stable.get(encodeTerms(terms))
	return ok
}

// ScanStable probes S. An empty positions slice is a full scan.
func (r *Relation) ScanStable(positions []int, key []datalog.Term) []Fact {
	return r.stable.probe(positions, key)
}

// ScanDelta probes the Δ⁺ view currently feeding this round's
// delta-variant evaluation.
func (r *Relation) ScanDelta(positions []int, key []datalog.Term) []Fact {
	return r.deltaIn.probe(positions, key)
}

// ScanDeltaMinus probes the Δ⁻ view: facts mid-removal during the
// current deletion epoch.
func (r *Relation) ScanDeltaMinus(positions []int, key []datalog.Term) []Fact {
	return r.deltaMinus.probe(positions, key)
}

// ScanStableOrDelta probes S ∪ Δ⁺: used for body positions that come
// after a semi-naive variant's pinned delta position (see
// planner.RulePlan.SourceAt). S and Δ⁺ never hold the same key at
// once, so this is a plain concatenation, no de-duplication needed.
func (r *Relation) ScanStableOrDelta(positions []int, key []datalog.Term) []Fact {
	out := r.stable.probe(positions, key)
	return append(out, r.deltaIn.probe(positions, key)...)
}

// located finds which of the three live views (stable, deltaIn,
// deltaOut) currently holds key, if any. A fact occupies exactly one
// of these at a time: deltaOut is where it is born, SwapDeltas moves
// the whole bucket into deltaIn, and folds the previous deltaIn into
// stable: never a copy, always a move.
func (r *Relation) located(key string) (*indexedSet, *entry) {
	for _, set := range []*indexedSet{r.stable, r.deltaIn, r.deltaOut} {
		if e, ok := set.get(key); ok {
			return set, e
		}
	}
	return nil, nil
}

// IntensionalInsert increments c(fact), creating it fresh in Δ⁺
// (deltaOut) the first time its count leaves zero. Returns
// fresh=true the first time the fact is derived at all,
// false when this is an additional supporting derivation
// ("resupport") of an already-known fact.
func (r *Relation) IntensionalInsert(terms []datalog.Term) (fresh bool) {
	key := encodeTerms(terms)
	if _, e := r.located(key); e != nil {
		e.count++
		return false
	}
	e := &entry{fact: Fact{Terms: terms}, count: 1}
	r.deltaOut.add(e)
	return true
}

// IntensionalDecrement decrements c(fact). When the count reaches
// zero the fact moves to Δ⁻, invisible to subsequent stable/delta
// probes this epoch but still resolvable in Δ⁻ for unwinding.
// Decrementing an already-zero (i.e. absent) fact is a fatal
// bookkeeping-corruption invariant breach and panics with
// ErrCorruptSupportCount rather than returning an error, since it can
// never legitimately happen once a program is validated.
func (r *Relation) IntensionalDecrement(terms []datalog.Term) (crossedZero bool) {
	key := encodeTerms(terms)
	set, e := r.located(key)
	if e == nil || e.count <= 0 {
		panic(fmt.Errorf("%w: relation %s fact %v", errs.ErrCorruptSupportCount, r.Symbol, terms))
	}
	e.count--
	if e.count == 0 {
		set.remove(key)
		r.deltaMinus.add(e)
		return true
	}
	return false
}

// ExtensionalAssert ensures fact has positive support without
// touching its count if it is already present: inserting an
// already-present tuple is a no-op for S. Absent facts are born in
// Δ⁺ with count 1, the implicit "the user" support.
func (r *Relation) ExtensionalAssert(terms []datalog.Term) (fresh bool) {
	key := encodeTerms(terms)
	if _, e := r.located(key); e != nil {
		return false
	}
	e := &entry{fact: Fact{Terms: terms}, count: 1}
	r.deltaOut.add(e)
	return true
}

// ExtensionalRetract invalidates the fact's one implicit support
// outright (base facts never have more than one: "the user") and
// moves it to Δ⁻ so dependent derivations unwind through the normal
// decrement machinery. A no-op if the fact is already absent.
func (r *Relation) ExtensionalRetract(terms []datalog.Term) (removed bool) {
	key := encodeTerms(terms)
	set, e := r.located(key)
	if e == nil {
		return false
	}
	set.remove(key)
	e.count = 0
	r.deltaMinus.add(e)
	return true
}

// SwapDeltas folds the current Δ⁺ input (deltaIn) into S and installs
// deltaOut, this round's freshly (re)supported facts, as the Δ⁺
// input for the next round.
func (r *Relation) SwapDeltas() {
	for _, e := range r.deltaIn.primary {
		r.stable.add(e)
	}
	r.deltaIn = r.deltaOut
	r.deltaOut = newIndexedSet()
	for _, p := range r.patterns {
		r.deltaOut.registerPattern(p)
	}
}

// DrainDeltaMinus clears Δ⁻, returning the facts that were pending
// removal. Used by the evaluator once a deletion epoch has finished
// unwinding and needs to reset for the next call to Poll.
func (r *Relation) DrainDeltaMinus() []Fact {
	out := r.deltaMinus.scan()
	r.deltaMinus = newIndexedSet()
	for _, p := range r.patterns {
		r.deltaMinus.registerPattern(p)
	}
	return out
}

// HasPendingDelta reports whether Δ⁺ (input or accumulating) holds any
// facts: the per-relation half of the runtime's safe() check.
func (r *Relation) HasPendingDelta() bool {
	return len(r.deltaIn.primary) > 0 || len(r.deltaOut.primary) > 0
}

// HasPendingDeltaMinus reports whether a deletion epoch is still
// unwinding for this relation.
func (r *Relation) HasPendingDeltaMinus() bool {
	return len(r.deltaMinus.primary) > 0
}

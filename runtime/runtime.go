// Package runtime is the public surface of the engine:
// new/insert/remove/poll/safe/contains/query over one validated,
// compiled program. It wires datalog/rule (validation),
// datalog/planner (compilation), datalog/storage (the indexed relation
// store), datalog/executor (the semi-naive evaluator), and
// datalog/query (the pattern query engine) behind those verbs, one
// top-level handle owning its storage, executor and query layers.
package runtime

import (
	"fmt"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/annotations"
	"github.com/nmoreau/semidatalog/datalog/errs"
	"github.com/nmoreau/semidatalog/datalog/executor"
	"github.com/nmoreau/semidatalog/datalog/planner"
	"github.com/nmoreau/semidatalog/datalog/query"
	"github.com/nmoreau/semidatalog/datalog/rule"
	"github.com/nmoreau/semidatalog/datalog/storage"
)

// Runtime is one running program instance: a validated schema, its
// compiled rule plans, a store, and the evaluator that drives them.
// Not safe for concurrent use across goroutines without external
// synchronization; the semi-naive round loop mutates store state
// in place under a single-writer contract.
type Runtime struct {
	schema   *rule.Schema
	store    *storage.Store
	eval     *executor.Evaluator
	interner *datalog.Interner

	pending    []executor.Removal
	collector  *annotations.Collector
}

// New validates program (range-restriction, arity coherence,
// stratifiability of any negation), compiles every rule, and builds an
// empty store ready to accept Insert calls. A nil handler disables
// annotation collection.
func New(program *rule.Program, handler annotations.Handler) (*Runtime, error) {
	schema, err := rule.Validate(program)
	if err != nil {
		return nil, err
	}
	plans := planner.CompileProgram(program.Rules)

	var indices []planner.IndexDescriptor
	for _, p := range plans {
		indices = append(indices, p.Indices...)
	}
	store := storage.NewStore(schema, indices)
	interner := datalog.NewInterner()

	rt := &Runtime{
		schema:    schema,
		store:     store,
		interner:  interner,
		collector: annotations.NewCollector(handler),
	}
	rt.eval = executor.New(store, schema, plans, interner, rt.collector)
	return rt, nil
}

// Insert asserts one extensional tuple; it takes effect starting with
// the next Poll. Rejects unknown relations, arity mismatches, and
// attempts to populate an intensional (derived) relation directly.
func (rt *Runtime) Insert(sym rule.Symbol, values ...datalog.Value) error {
	info, ok := rt.schema.Relations[sym]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrUnknownRelation, sym)
	}
	if info.Arity != len(values) {
		return fmt.Errorf("%w: relation %s expects arity %d, got %d", errs.ErrArityMismatch, sym, info.Arity, len(values))
	}
	if info.Kind == rule.Intensional {
		return fmt.Errorf("%w: %s is derived by a rule", errs.ErrInvalidInsert, sym)
	}
	terms := rt.interner.InternTuple(values...)
	_, err := rt.store.Insert(sym, terms)
	return err
}

// Remove queues every extensional fact currently matching p for
// retraction, applied and cascaded during the next Poll. A pattern
// with wildcard columns queues every matching fact, not just one; a
// pattern that matches nothing is a no-op, not an error. Rejects
// unknown relations, arity mismatches, and attempts to remove from an
// intensional (derived) relation.
func (rt *Runtime) Remove(p query.Pattern) error {
	info, ok := rt.schema.Relations[p.Relation]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrUnknownRelation, p.Relation)
	}
	if info.Kind == rule.Intensional {
		return fmt.Errorf("%w: %s is derived by a rule", errs.ErrInvalidRemoval, p.Relation)
	}
	rows, err := query.Run(rt.store, rt.interner, p)
	if err != nil {
		return err
	}
	for _, row := range rows {
		terms := rt.interner.InternTuple(row...)
		rt.pending = append(rt.pending, executor.Removal{Symbol: p.Relation, Terms: terms})
		rt.collector.Add(annotations.Event{Name: annotations.RemovalQueued, Data: map[string]interface{}{"relation": string(p.Relation)}})
	}
	return nil
}

// Poll runs one full evaluation cycle: the queued removals' deletion
// cascades, in the order they were queued, followed by the insertion
// epoch to a fixed point across every stratum. After Poll returns,
// Safe reports true unless a new Insert/Remove has been queued since.
func (rt *Runtime) Poll() {
	rt.collector.Add(annotations.Event{Name: annotations.PollBegin})
	removals := rt.pending
	rt.pending = nil
	rt.eval.Poll(removals)
	rt.collector.Add(annotations.Event{Name: annotations.PollComplete})
}

// Safe reports whether the store has fully quiesced: no relation
// carries a pending delta, and no removal is queued awaiting the next
// Poll.
func (rt *Runtime) Safe() bool {
	return rt.store.Safe() && len(rt.pending) == 0
}

// Contains reports whether tuple currently holds in relation sym's
// settled state. A value never interned by this runtime cannot equal
// any fact the store could hold, so that case short-circuits to false
// without touching the store.
func (rt *Runtime) Contains(sym rule.Symbol, values ...datalog.Value) (bool, error) {
	r, err := rt.store.Relation(sym)
	if err != nil {
		return false, err
	}
	if len(values) != r.Arity {
		return false, fmt.Errorf("%w: relation %s expects arity %d, got %d", errs.ErrArityMismatch, sym, r.Arity, len(values))
	}
	terms := make([]datalog.Term, len(values))
	for i, v := range values {
		t, ok := rt.interner.Lookup(v)
		if !ok {
			return false, nil
		}
		terms[i] = t
	}
	return rt.store.Contains(sym, terms)
}

// Query answers a pattern query against the current settled state:
// results never reflect an in-progress round's delta.
func (rt *Runtime) Query(p query.Pattern) ([]query.Tuple, error) {
	return query.Run(rt.store, rt.interner, p)
}

// Events returns every annotation event collected since the last
// Reset, in chronological order.
func (rt *Runtime) Events() []annotations.Event {
	return rt.collector.Events()
}

// ResetEvents clears the annotation history.
func (rt *Runtime) ResetEvents() {
	rt.collector.Reset()
}

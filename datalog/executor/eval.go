// Package executor is the semi-naive evaluator: it drives the plans
// compiled by datalog/planner against the store of datalog/storage
// until a fixed point, for both the insertion and the deletion
// sub-epoch of one poll. A stratum runs its rules to a fixed point
// before the next stratum starts, over disjoint stable/Δ⁺/Δ⁻ storage
// views rather than a single eagerly-mutated relation.
package executor

import (
	"time"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/annotations"
	"github.com/nmoreau/semidatalog/datalog/planner"
	"github.com/nmoreau/semidatalog/datalog/rule"
	"github.com/nmoreau/semidatalog/datalog/storage"
)

// Removal names one extensional fact queued for retraction.
type Removal struct {
	Symbol rule.Symbol
	Terms  []datalog.Term
}

// positionRef names one (plan, body position) pair that scans a given
// relation, used to find every rule a removed fact might cascade
// through regardless of which stratum it belongs to.
type positionRef struct {
	plan     *planner.RulePlan
	position int
}

// Evaluator holds the compiled program against one store and runs
// poll's two sub-epochs.
type Evaluator struct {
	store    *storage.Store
	schema   *rule.Schema
	plans    []*planner.RulePlan // plans[i] compiled from the rule at schema index i
	interner *datalog.Interner

	byRelation map[rule.Symbol][]positionRef
	annotate   *annotations.Collector
}

// New builds an Evaluator. plans must be CompileProgram's output for
// the same rule list schema.Strata indexes into. A nil collector
// disables annotation events entirely.
func New(store *storage.Store, schema *rule.Schema, plans []*planner.RulePlan, interner *datalog.Interner, collector *annotations.Collector) *Evaluator {
	if collector == nil {
		collector = annotations.NewCollector(nil)
	}
	e := &Evaluator{
		store:      store,
		schema:     schema,
		plans:      plans,
		interner:   interner,
		byRelation: make(map[rule.Symbol][]positionRef),
		annotate:   collector,
	}
	for _, plan := range plans {
		e.byRelation[plan.Scan.Relation] = append(e.byRelation[plan.Scan.Relation], positionRef{plan, 0})
		for i, j := range plan.Joins {
			if j.Anti {
				continue
			}
			e.byRelation[j.Relation] = append(e.byRelation[j.Relation], positionRef{plan, i + 1})
		}
	}
	return e
}

// Poll runs one full evaluation cycle: the deletion sub-epoch
// (removals applied and cascaded one at a time, to completion, before
// the next starts; see cascadeRemoval's doc for why), then the
// insertion sub-epoch to quiescence.
func (e *Evaluator) Poll(removals []Removal) {
	for _, rm := range removals {
		removed, err := e.store.Remove(rm.Symbol, rm.Terms)
		if err != nil || !removed {
			continue
		}
		e.cascadeRemoval(rm.Symbol, storage.Fact{Terms: rm.Terms})
	}
	e.runInsertionEpoch()
}

// runInsertionEpoch runs the positive epoch: prime every relation's
// Δ⁺ once from whatever is pending (extensional inserts queued since
// the last poll), then run each stratum in topological order to its
// own fixed point before moving to the next.
func (e *Evaluator) runInsertionEpoch() {
	for _, r := range e.store.Relations() {
		r.SwapDeltas()
	}
	for i, stratum := range e.schema.Strata {
		e.settleStratum(i, stratum)
	}
}

// settleStratum repeats a scan/join/project sweep over this stratum's
// rules until a full sweep adds nothing new.
func (e *Evaluator) settleStratum(stratumIdx int, ruleIdxs []int) {
	start := time.Now()
	e.annotate.Add(annotations.Event{Name: annotations.StratumBegin, Data: map[string]interface{}{"stratum": stratumIdx, "rule.count": len(ruleIdxs)}})
	rounds := 0
	for {
		rounds++
		for _, idx := range ruleIdxs {
			plan := e.plans[idx]
			headRel, _ := e.store.Relation(plan.Project.Head)
			for pos := 0; pos < plan.BodyLen(); pos++ {
				if plan.IsAnti(pos) {
					continue // Δ is never pinned at a negated position
				}
				for _, fact := range e.runVariant(plan, pos) {
					if headRel.IntensionalInsert(fact.Terms) {
						e.annotate.Add(annotations.Event{Name: annotations.IntensionalInsert, Data: map[string]interface{}{"relation": string(plan.Project.Head)}})
					} else {
						e.annotate.Add(annotations.Event{Name: annotations.IntensionalResupport, Data: map[string]interface{}{"relation": string(plan.Project.Head)}})
					}
				}
			}
		}

		for _, r := range e.store.Relations() {
			r.SwapDeltas()
		}

		grew := false
		for _, idx := range ruleIdxs {
			headRel, _ := e.store.Relation(e.plans[idx].Project.Head)
			if headRel.HasPendingDelta() {
				grew = true
			}
		}
		if !grew {
			e.annotate.AddTiming(annotations.StratumComplete, start, map[string]interface{}{"stratum": stratumIdx, "round.count": rounds})
			return
		}
	}
}

// runVariant evaluates the delta variant of plan pinned at deltaPos,
// dispatching each body position's source via RulePlan.SourceAt.
func (e *Evaluator) runVariant(plan *planner.RulePlan, deltaPos int) []storage.Fact {
	fetch := func(position int, rel rule.Symbol, positions []int, key []datalog.Term) []storage.Fact {
		r, _ := e.store.Relation(rel)
		switch plan.SourceAt(deltaPos, position) {
		case planner.Delta:
			return r.ScanDelta(positions, key)
		case planner.StableOrDelta:
			return r.ScanStableOrDelta(positions, key)
		default:
			return r.ScanStable(positions, key)
		}
	}
	return e.runPlan(plan, fetch)
}

// cascadeRemoval runs the negative epoch for one already-evicted
// extensional fact: a breadth-first worklist over
// every (plan, position) that scans the affected relation, decrementing
// each produced head instantiation's support and enqueueing it in turn
// if its count crosses zero.
//
// Processing one original removal's whole cascade to completion before
// the caller evicts the next one (see Poll) matters for correctness:
// each step's "other" body positions read the relation's *current*
// stable set, which must still include any sibling fact not yet
// evicted. If two facts that are removed in the same poll jointly
// support a third fact, interleaving their cascades would either miss
// that grounding (if both are evicted up front) or find it twice (if
// both remain visible at once). Doing one cascade fully before the
// next starts makes each grounding visible to exactly one of the two
// decrements.
func (e *Evaluator) cascadeRemoval(sym rule.Symbol, fact storage.Fact) {
	start := time.Now()
	type item struct {
		sym  rule.Symbol
		fact storage.Fact
	}
	queue := []item{{sym, fact}}
	touched := map[rule.Symbol]bool{sym: true}
	unwound := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ref := range e.byRelation[cur.sym] {
			headRel, _ := e.store.Relation(ref.plan.Project.Head)
			for _, h := range e.runRemovalVariant(ref.plan, ref.position, cur.fact) {
				if headRel.IntensionalDecrement(h.Terms) {
					e.annotate.Add(annotations.Event{Name: annotations.IntensionalDecrement, Data: map[string]interface{}{"relation": string(ref.plan.Project.Head)}})
					unwound++
					touched[ref.plan.Project.Head] = true
					queue = append(queue, item{ref.plan.Project.Head, h})
				}
			}
		}
	}

	for s := range touched {
		if r, err := e.store.Relation(s); err == nil {
			r.DrainDeltaMinus()
		}
	}
	e.annotate.AddTiming(annotations.CascadeSettled, start, map[string]interface{}{"fact.count": unwound})
}

// runRemovalVariant evaluates plan with pinnedPos restricted to the
// single fact removed, and every other non-negated position read from
// the relation's live stable set (already reflecting any earlier step
// of this same cascade). Negated positions stay Stable too: a removal
// flipping a negated atom from false to true would require a fresh
// insertion-side re-derivation, which this engine does not attempt.
// See DESIGN.md.
func (e *Evaluator) runRemovalVariant(plan *planner.RulePlan, pinnedPos int, removed storage.Fact) []storage.Fact {
	fetch := func(position int, rel rule.Symbol, positions []int, key []datalog.Term) []storage.Fact {
		if position == pinnedPos {
			if factMatchesKey(removed, positions, key) {
				return []storage.Fact{removed}
			}
			return nil
		}
		r, _ := e.store.Relation(rel)
		return r.ScanStable(positions, key)
	}
	return e.runPlan(plan, fetch)
}

func factMatchesKey(f storage.Fact, positions []int, key []datalog.Term) bool {
	for i, p := range positions {
		if f.Terms[p] != key[i] {
			return false
		}
	}
	return true
}

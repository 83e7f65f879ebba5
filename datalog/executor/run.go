package executor

import (
	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/planner"
	"github.com/nmoreau/semidatalog/datalog/rule"
	"github.com/nmoreau/semidatalog/datalog/storage"
)

// fetch retrieves the candidate facts for one body position: rel is
// the atom's relation, positions/key is the bound-column probe built
// from whatever is already known (constants, or columns bound by
// earlier atoms), and which view (S, Δ⁺, Δ⁻, or S ∪ Δ⁺) it reads is
// entirely the caller's choice. runPlan is oblivious to that choice;
// it is what lets the same interpreter serve both the insertion
// variants (RulePlan.SourceAt) and the deletion cascade
// (runRemovalVariant's single pinned fact).
type fetch func(position int, rel rule.Symbol, positions []int, key []datalog.Term) []storage.Fact

// runPlan interprets a compiled RulePlan row by row: Scan seeds the
// intermediate rows, each Join extends or filters them, and Project
// reshapes whatever survives into head facts.
func (e *Evaluator) runPlan(plan *planner.RulePlan, f fetch) []storage.Fact {
	rows := e.execScan(plan.Scan, f)
	for i, step := range plan.Joins {
		rows = e.execJoin(step, i+1, rows, f)
		if len(rows) == 0 {
			return nil
		}
	}
	return e.execProject(plan.Project, rows)
}

func (e *Evaluator) execScan(step planner.ScanStep, f fetch) [][]datalog.Term {
	positions, key, ok := e.constKey(step.ConstEq)
	if !ok {
		return nil
	}
	var rows [][]datalog.Term
	for _, fact := range f(0, step.Relation, positions, key) {
		if !e.satisfies(fact.Terms, step.ConstEq, step.SelfEq) {
			continue
		}
		row := make([]datalog.Term, len(step.ColumnArgPos))
		for i, pos := range step.ColumnArgPos {
			row[i] = fact.Terms[pos]
		}
		rows = append(rows, row)
	}
	return rows
}

// execJoin probes step.Relation for every row in rows, using the
// equi-join and constant keys derivable from that row, and either
// extends the row with the atom's new columns (a positive join) or
// keeps the row unchanged exactly when no candidate survives the
// residual filters (an anti-join).
func (e *Evaluator) execJoin(step planner.JoinStep, position int, rows [][]datalog.Term, f fetch) [][]datalog.Term {
	var out [][]datalog.Term
	for _, row := range rows {
		positions, key, ok := e.joinKey(step, row)
		if !ok {
			if step.Anti {
				out = append(out, row)
			}
			continue
		}
		matched := false
		for _, fact := range f(position, step.Relation, positions, key) {
			if !e.satisfies(fact.Terms, step.ConstEq, step.SelfEq) {
				continue
			}
			matched = true
			if step.Anti {
				break
			}
			newRow := append(append([]datalog.Term{}, row...), extractNewColumns(step, fact)...)
			out = append(out, newRow)
		}
		if step.Anti && !matched {
			out = append(out, row)
		}
	}
	return out
}

func extractNewColumns(step planner.JoinStep, fact storage.Fact) []datalog.Term {
	cols := make([]datalog.Term, len(step.NewColumns))
	for i, nc := range step.NewColumns {
		cols[i] = fact.Terms[nc.AtomArgPos]
	}
	return cols
}

func (e *Evaluator) execProject(step planner.ProjectStep, rows [][]datalog.Term) []storage.Fact {
	out := make([]storage.Fact, 0, len(rows))
	for _, row := range rows {
		terms := make([]datalog.Term, len(step.Bindings))
		for i, b := range step.Bindings {
			if b.FromColumn >= 0 {
				terms[i] = row[b.FromColumn]
			} else {
				terms[i] = e.interner.Intern(b.Const)
			}
		}
		out = append(out, storage.Fact{Terms: terms})
	}
	return out
}

// constKey builds the probe key for a set of constant-equality
// positions. A constant that has never been interned cannot match any
// existing fact, so ok is false and the caller should skip the probe
// entirely rather than ask the store for an impossible pattern.
func (e *Evaluator) constKey(constEq map[int]datalog.Value) ([]int, []datalog.Term, bool) {
	positions := make([]int, 0, len(constEq))
	key := make([]datalog.Term, 0, len(constEq))
	for pos, v := range constEq {
		t, ok := e.interner.Lookup(v)
		if !ok {
			return nil, nil, false
		}
		positions = append(positions, pos)
		key = append(key, t)
	}
	return positions, key, true
}

// joinKey builds the probe key for a join step from the already-bound
// intermediate row (its equi-join columns) plus any constant-equality
// positions the same atom carries.
func (e *Evaluator) joinKey(step planner.JoinStep, row []datalog.Term) ([]int, []datalog.Term, bool) {
	positions := make([]int, 0, len(step.EquiJoin)+len(step.ConstEq))
	key := make([]datalog.Term, 0, len(step.EquiJoin)+len(step.ConstEq))
	for _, jk := range step.EquiJoin {
		positions = append(positions, jk.AtomArgPos)
		key = append(key, row[jk.IntermediateCol])
	}
	for pos, v := range step.ConstEq {
		t, ok := e.interner.Lookup(v)
		if !ok {
			return nil, nil, false
		}
		positions = append(positions, pos)
		key = append(key, t)
	}
	return positions, key, true
}

// satisfies applies the residual predicates an index lookup alone does
// not enforce: constant equality (re-checked defensively) and
// self-equality between repeated columns within the same atom.
func (e *Evaluator) satisfies(terms []datalog.Term, constEq map[int]datalog.Value, selfEq [][2]int) bool {
	for pos, v := range constEq {
		t, ok := e.interner.Lookup(v)
		if !ok || terms[pos] != t {
			return false
		}
	}
	for _, pair := range selfEq {
		if terms[pair[0]] != terms[pair[1]] {
			return false
		}
	}
	return true
}

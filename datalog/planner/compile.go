package planner

import (
	"sort"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/rule"
)

// Compile turns one rule into a RulePlan: walk the body left to right
// tracking bound variables, emit a Scan for the first atom and a Join
// for each subsequent atom,
// then a final Project into the head shape. Positive atoms are kept in
// their written relative order and compiled first; negated atoms are
// moved to the end (also keeping their relative order) since
// range-restriction guarantees every variable they mention is already
// bound by some positive atom, so delaying them never blocks binding
// and always keeps the Scan step, which can only come from a
// positive atom, well defined.
func Compile(r rule.Rule) *RulePlan {
	body := reorderBody(r.Body)

	bound := make(map[rule.Var]int) // var -> intermediate column index
	var schema []rule.Var

	first := body[0]
	scan, cols := compileScan(first)
	for i, v := range cols {
		bound[v] = len(schema) + i
	}
	schema = append(schema, cols...)

	joins := make([]JoinStep, 0, len(body)-1)
	for _, atom := range body[1:] {
		join, newCols := compileJoin(atom, bound)
		for _, nc := range newCols {
			bound[nc.Var] = len(schema)
			schema = append(schema, nc.Var)
		}
		joins = append(joins, join)
	}

	project := compileProject(r.Head, bound)

	plan := &RulePlan{
		Rule:    r,
		Scan:    scan,
		Joins:   joins,
		Project: project,
		Schema:  schema,
	}
	plan.Indices = collectIndices(plan)
	return plan
}

// reorderBody stably partitions body atoms into positive atoms
// followed by negated atoms.
func reorderBody(body []rule.BodyAtom) []rule.BodyAtom {
	out := make([]rule.BodyAtom, 0, len(body))
	for _, b := range body {
		if !b.Negated {
			out = append(out, b)
		}
	}
	for _, b := range body {
		if b.Negated {
			out = append(out, b)
		}
	}
	return out
}

// compileScan builds the Scan step for the body's first atom: every
// argument is either a fresh variable (new output column), a
// constant (selection predicate), or a variable already seen earlier
// in the same atom (self-equality predicate); there is no "already
// bound" case yet since nothing precedes the first atom.
func compileScan(atom rule.BodyAtom) (ScanStep, []rule.Var) {
	step := ScanStep{
		Relation: atom.Relation,
		Arity:    atom.Arity(),
		ConstEq:  make(map[int]datalog.Value),
	}
	seenAt := make(map[rule.Var]int)
	var cols []rule.Var
	for pos, arg := range atom.Args {
		switch a := arg.(type) {
		case rule.Const:
			step.ConstEq[pos] = a.Value
		case rule.Var:
			if firstPos, ok := seenAt[a]; ok {
				step.SelfEq = append(step.SelfEq, [2]int{firstPos, pos})
				continue
			}
			seenAt[a] = pos
			step.Columns = append(step.Columns, a)
			step.ColumnArgPos = append(step.ColumnArgPos, pos)
			cols = append(cols, a)
		}
	}
	return step, cols
}

// compileJoin builds the Join step for a non-first body atom. Columns
// whose variable is already bound become equi-join keys; unbound
// variables extend the schema; constants and repeated unbound
// variables become residual predicates on the atom's own columns. A
// negated atom (BodyAtom.Negated) compiles to an anti-join: by
// range-restriction every one of its variables is already bound, so
// it only ever contributes EquiJoin/ConstEq/SelfEq filters and never a
// NewColumn.
func compileJoin(atom rule.BodyAtom, bound map[rule.Var]int) (JoinStep, []NewColumn) {
	step := JoinStep{
		Relation: atom.Relation,
		Arity:    atom.Arity(),
		ConstEq:  make(map[int]datalog.Value),
		Anti:     atom.Negated,
	}
	seenAt := make(map[rule.Var]int) // first unbound occurrence within this atom
	var newCols []NewColumn
	for pos, arg := range atom.Args {
		switch a := arg.(type) {
		case rule.Const:
			step.ConstEq[pos] = a.Value
		case rule.Var:
			if col, ok := bound[a]; ok {
				step.EquiJoin = append(step.EquiJoin, JoinKey{IntermediateCol: col, AtomArgPos: pos})
				continue
			}
			if firstPos, ok := seenAt[a]; ok {
				step.SelfEq = append(step.SelfEq, [2]int{firstPos, pos})
				continue
			}
			seenAt[a] = pos
			nc := NewColumn{AtomArgPos: pos, Var: a}
			newCols = append(newCols, nc)
			step.NewColumns = append(step.NewColumns, nc)
		}
	}
	return step, newCols
}

// compileProject reshapes the accumulated tuple into the head atom.
func compileProject(head rule.Atom, bound map[rule.Var]int) ProjectStep {
	proj := ProjectStep{Head: head.Relation}
	for _, arg := range head.Args {
		switch a := arg.(type) {
		case rule.Const:
			proj.Bindings = append(proj.Bindings, ProjBinding{FromColumn: -1, Const: a.Value})
		case rule.Var:
			// Guaranteed present by range-restriction (rule.Validate).
			proj.Bindings = append(proj.Bindings, ProjBinding{FromColumn: bound[a]})
		}
	}
	return proj
}

// collectIndices gathers the (relation, bound-column-pattern)
// descriptors this plan's scan and joins need probed, deduplicated.
func collectIndices(p *RulePlan) []IndexDescriptor {
	seen := make(map[string]bool)
	var out []IndexDescriptor

	add := func(rel rule.Symbol, boundPositions []int) {
		if len(boundPositions) == 0 {
			return
		}
		sorted := append([]int(nil), boundPositions...)
		sort.Ints(sorted)
		d := IndexDescriptor{Relation: rel, Bound: sorted}
		key := d.Key()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, d)
	}

	var scanBound []int
	for pos := range p.Scan.ConstEq {
		scanBound = append(scanBound, pos)
	}
	add(p.Scan.Relation, scanBound)

	for _, j := range p.Joins {
		var b []int
		for pos := range j.ConstEq {
			b = append(b, pos)
		}
		for _, k := range j.EquiJoin {
			b = append(b, k.AtomArgPos)
		}
		add(j.Relation, b)
	}
	return out
}

// CompileProgram compiles every rule in a program, in order.
func CompileProgram(rules []rule.Rule) []*RulePlan {
	plans := make([]*RulePlan, len(rules))
	for i, r := range rules {
		plans[i] = Compile(r)
	}
	return plans
}

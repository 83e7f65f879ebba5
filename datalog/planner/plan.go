// Package planner compiles rule.Program rules into left-deep plans of
// scan/join/project steps, split across a small plan.go/compile.go
// pair rather than one large file. Every rule is compiled once, up
// front, when a program is loaded; the resulting RulePlan is
// immutable and reused for every semi-naive round.
package planner

import (
	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/rule"
)

// Source selects which view of a relation a scan or join probes.
type Source int

const (
	// Stable is the relation's settled fact set S, as it stood before
	// this round's delta was produced.
	Stable Source = iota
	// Delta is the relation's Δ view driving this round.
	Delta
	// StableOrDelta is S ∪ Δ: used for body positions that come after
	// the pinned delta position (textual order) in a semi-naive
	// variant, so that two facts introduced in the very same round can
	// still be joined against each other without also being
	// double-counted by the variant pinned at the other position (see
	// RulePlan.SourceAt).
	StableOrDelta
)

func (s Source) String() string {
	switch s {
	case Delta:
		return "Δ"
	case StableOrDelta:
		return "S∪Δ"
	default:
		return "S"
	}
}

// IndexDescriptor names an index the store must maintain: the set of
// argument positions of Relation that some scan or join probes by
// equality. The compiler collects these across every rule so the
// store can build exactly the indices its plans need.
type IndexDescriptor struct {
	Relation rule.Symbol
	Bound    []int // sorted, de-duplicated argument positions
}

// Key returns a comparable representation for de-duplicating
// descriptors.
func (d IndexDescriptor) Key() string {
	b := make([]byte, 0, len(d.Bound)+1)
	for _, p := range d.Bound {
		b = append(b, byte(p))
	}
	return string(d.Relation) + ":" + string(b)
}

// ScanStep is the first plan step: it reads a relation's Source view,
// applying any constant-equality and self-equality residual filters
// embedded in the atom, and produces the atom's unbound variables as
// output columns.
type ScanStep struct {
	Relation rule.Symbol
	Arity    int

	// ConstEq maps an argument position to the constant it must equal.
	ConstEq map[int]datalog.Value
	// SelfEq lists pairs of argument positions that must carry equal
	// values (a variable repeated within the same atom).
	SelfEq [][2]int

	// Columns are the output columns this scan contributes, in
	// left-to-right argument order (constant and self-equality
	// positions after the first occurrence are not columns).
	Columns []rule.Var
	// ColumnArgPos[i] is the argument position that produced Columns[i].
	ColumnArgPos []int
}

// JoinKey pairs an already-bound intermediate column with the
// argument position of the new atom that must equal it.
type JoinKey struct {
	IntermediateCol int
	AtomArgPos      int
}

// NewColumn is a fresh variable a join step's atom introduces.
type NewColumn struct {
	AtomArgPos int
	Var        rule.Var
}

// JoinStep probes Relation's Source view, keyed by EquiJoin, applies
// ConstEq/SelfEq residual filters on the probed atom's own columns,
// and extends the accumulated intermediate schema with NewColumns. A
// negated body atom compiles to a JoinStep with Anti set: it admits an
// intermediate row only when the probe finds NO matching fact, and it
// never introduces NewColumns, since range-restriction guarantees all
// of its variables are already bound.
type JoinStep struct {
	Relation rule.Symbol
	Arity    int

	EquiJoin []JoinKey
	ConstEq  map[int]datalog.Value
	SelfEq   [][2]int

	NewColumns []NewColumn
	Anti       bool
}

// ProjBinding fills one head-atom argument position from either an
// intermediate column (FromColumn >= 0) or a literal constant.
type ProjBinding struct {
	FromColumn int // -1 means Const is used instead
	Const      datalog.Value
}

// ProjectStep reshapes the fully-joined intermediate tuple into the
// rule's head atom.
type ProjectStep struct {
	Head     rule.Symbol
	Bindings []ProjBinding
}

// RulePlan is the compiled, left-deep plan for one rule. It is
// immutable and shared by every semi-naive round and every
// delta-variant of the rule.
type RulePlan struct {
	Rule rule.Rule

	Scan  ScanStep
	Joins []JoinStep // len == len(Rule.Body) - 1
	Project ProjectStep

	// Schema is the full intermediate column list right before
	// Project runs: Schema[i] names the variable in column i.
	Schema []rule.Var

	// Indices are the (relation, bound-pattern) descriptors this plan
	// probes, deduplicated.
	Indices []IndexDescriptor
}

// BodyLen returns the number of body atoms, i.e. the number of
// distinct delta positions a semi-naive variant can pin.
func (p *RulePlan) BodyLen() int { return len(p.Rule.Body) }

// SourceAt returns the Source each body position should use for the
// variant with the delta pinned at deltaPos. Positions before deltaPos
// (textual order) read Stable only; the pinned position reads Delta;
// positions after it read StableOrDelta (S ∪ Δ).
//
// The asymmetry is deliberate, not cosmetic. Consider a purely
// self-referential rule such as tc(x,z) <- tc(x,y), tc(y,z), in a
// round where two facts of tc were both freshly derived in the
// previous round (so both are in Δ right now) and one depends on the
// other for a third derivation. If every non-pinned position read
// Stable∪Delta symmetrically, the same grounding could be produced by
// both the variant pinned at position 0 and the variant pinned at
// position 1, double-counting its support. Restricting "before"
// positions to Stable-only makes that impossible: a fact cannot
// simultaneously be in Δ (required for the pinned position of the
// *other* variant to find it there) and excluded from Δ (required for
// the "before" position here), so the two variants' hits are always
// disjoint. Meanwhile "after" positions still see Δ so that two facts
// born in the very same round chain correctly instead of needing an
// extra round to become visible to each other.
//
// A negated position is always Stable: stratification guarantees its
// relation is already fully settled by the time this rule's stratum
// runs, so it can never itself be the origin of a delta within this
// fixpoint loop.
func (p *RulePlan) SourceAt(deltaPos, position int) Source {
	if p.IsAnti(position) {
		return Stable
	}
	switch {
	case position < deltaPos:
		return Stable
	case position == deltaPos:
		return Delta
	default:
		return StableOrDelta
	}
}

// IsAnti reports whether body position (0 = scan, i = Joins[i-1])
// compiles to a negated-atom anti-join.
func (p *RulePlan) IsAnti(position int) bool {
	if position == 0 {
		return false
	}
	return p.Joins[position-1].Anti
}

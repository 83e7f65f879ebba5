package storage

import (
	"testing"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/planner"
	"github.com/nmoreau/semidatalog/datalog/rule"
)

func testSchema() *rule.Schema {
	return &rule.Schema{
		Relations: map[rule.Symbol]*rule.RelationInfo{
			"e":  {Symbol: "e", Arity: 2, Kind: rule.Extensional},
			"tc": {Symbol: "tc", Arity: 2, Kind: rule.Intensional},
		},
	}
}

func terms(interner *datalog.Interner, vs ...datalog.Value) []datalog.Term {
	return interner.InternTuple(vs...)
}

func TestInsertIsIdempotentForExtensional(t *testing.T) {
	store := NewStore(testSchema(), nil)
	in := datalog.NewInterner()
	tup := terms(in, "a", "b")

	fresh, err := store.Insert("e", tup)
	if err != nil || !fresh {
		t.Fatalf("first insert: fresh=%v err=%v", fresh, err)
	}
	fresh, err = store.Insert("e", tup)
	if err != nil || fresh {
		t.Fatalf("second insert should be a no-op: fresh=%v err=%v", fresh, err)
	}

	r, _ := store.Relation("e")
	r.SwapDeltas() // Δ⁺ accumulating -> Δ⁺ input
	r.SwapDeltas() // Δ⁺ input -> S

	fresh, err = store.Insert("e", tup)
	if err != nil || fresh {
		t.Fatalf("insert of already-stable tuple should be a no-op: fresh=%v err=%v", fresh, err)
	}
}

func TestUnknownRelationError(t *testing.T) {
	store := NewStore(testSchema(), nil)
	in := datalog.NewInterner()
	_, err := store.Insert("nope", terms(in, "a"))
	if err == nil {
		t.Fatal("expected an unknown relation error")
	}
}

func TestArityMismatchError(t *testing.T) {
	store := NewStore(testSchema(), nil)
	in := datalog.NewInterner()
	_, err := store.Insert("e", terms(in, "a"))
	if err == nil {
		t.Fatal("expected an arity mismatch error")
	}
}

func TestSwapDeltasFoldsAndPromotes(t *testing.T) {
	store := NewStore(testSchema(), nil)
	r, _ := store.Relation("tc")
	in := datalog.NewInterner()
	t1 := terms(in, "a", "b")

	fresh := r.IntensionalInsert(t1)
	if !fresh {
		t.Fatal("expected fresh derivation")
	}
	if r.Contains(t1) {
		t.Fatal("fact should not be in S before a swap")
	}

	r.SwapDeltas() // t1 now in deltaIn (Δ⁺ input), not yet in S
	if r.Contains(t1) {
		t.Fatal("fact should be visible via Δ⁺, not yet S, after one swap")
	}

	r.SwapDeltas() // deltaIn folds into S
	if !r.Contains(t1) {
		t.Fatal("fact should be in S after the second swap")
	}
}

func TestIntensionalDecrementToZeroMovesToDeltaMinus(t *testing.T) {
	store := NewStore(testSchema(), nil)
	r, _ := store.Relation("tc")
	in := datalog.NewInterner()
	t1 := terms(in, "a", "b")

	r.IntensionalInsert(t1)
	r.SwapDeltas()
	r.SwapDeltas() // now stable

	crossed := r.IntensionalDecrement(t1)
	if !crossed {
		t.Fatal("expected the single support to cross zero")
	}
	if r.Contains(t1) {
		t.Fatal("fact should no longer be in S")
	}
}

func TestIntensionalDecrementRequiresMultipleSupportsBeforeRemoval(t *testing.T) {
	store := NewStore(testSchema(), nil)
	r, _ := store.Relation("tc")
	in := datalog.NewInterner()
	t1 := terms(in, "a", "b")

	r.IntensionalInsert(t1) // support 1
	r.IntensionalInsert(t1) // support 2, resupport
	r.SwapDeltas()
	r.SwapDeltas()

	if crossed := r.IntensionalDecrement(t1); crossed {
		t.Fatal("one remaining support should keep the fact alive")
	}
	if !r.Contains(t1) {
		t.Fatal("fact should still be in S with one support left")
	}
	if crossed := r.IntensionalDecrement(t1); !crossed {
		t.Fatal("final decrement should cross zero")
	}
}

func TestProbeByBoundColumn(t *testing.T) {
	store := NewStore(testSchema(), []planner.IndexDescriptor{{Relation: "e", Bound: []int{0}}})
	r, _ := store.Relation("e")
	in := datalog.NewInterner()

	store.Insert("e", terms(in, "a", "b"))
	store.Insert("e", terms(in, "a", "c"))
	store.Insert("e", terms(in, "x", "y"))
	r.SwapDeltas()
	r.SwapDeltas() // now stable

	aID := in.Intern("a")
	got := r.ScanStable([]int{0}, []datalog.Term{aID})
	if len(got) != 2 {
		t.Fatalf("expected 2 facts bound on e[0]=a, got %d", len(got))
	}
}

package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreau/semidatalog/datalog/annotations"
	"github.com/nmoreau/semidatalog/datalog/errs"
	"github.com/nmoreau/semidatalog/datalog/query"
	"github.com/nmoreau/semidatalog/datalog/rule"
)

// transitiveClosure builds tc(x,y) <- e(x,y). tc(x,z) <- e(x,y), tc(y,z).
func transitiveClosure() *rule.Program {
	x, y, z := rule.Var("x"), rule.Var("y"), rule.Var("z")
	base := rule.Rule{
		Head: rule.Atom{Relation: "tc", Args: []rule.Term{x, y}},
		Body: []rule.BodyAtom{{Atom: rule.Atom{Relation: "e", Args: []rule.Term{x, y}}}},
	}
	step := rule.Rule{
		Head: rule.Atom{Relation: "tc", Args: []rule.Term{x, z}},
		Body: []rule.BodyAtom{
			{Atom: rule.Atom{Relation: "e", Args: []rule.Term{x, y}}},
			{Atom: rule.Atom{Relation: "tc", Args: []rule.Term{y, z}}},
		},
	}
	return &rule.Program{
		Rules:       []rule.Rule{base, step},
		Extensional: map[rule.Symbol]int{"e": 2},
	}
}

func mustPairs(t *testing.T, rt *Runtime, rel rule.Symbol) map[[2]string]bool {
	t.Helper()
	rows, err := rt.Query(query.New(rel, query.Any(), query.Any()))
	require.NoError(t, err)
	out := make(map[[2]string]bool, len(rows))
	for _, row := range rows {
		out[[2]string{row[0].(string), row[1].(string)}] = true
	}
	return out
}

// Scenario 1: transitive closure over a simple chain settles to the
// full set of reachable pairs.
func TestTransitiveClosure(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		require.NoError(t, rt.Insert("e", e[0], e[1]))
	}
	rt.Poll()
	require.True(t, rt.Safe())

	got := mustPairs(t, rt, "tc")
	want := map[[2]string]bool{
		{"a", "b"}: true, {"b", "c"}: true, {"c", "d"}: true,
		{"a", "c"}: true, {"b", "d"}: true, {"a", "d"}: true,
	}
	assert.Equal(t, want, got)
}

// Scenario 2: incrementality. Inserting one new edge after the first
// poll only adds the pairs it newly supports, without recomputing
// anything already settled incorrectly.
func TestIncrementalInsertExtendsClosure(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}} {
		require.NoError(t, rt.Insert("e", e[0], e[1]))
	}
	rt.Poll()
	assert.Equal(t, map[[2]string]bool{
		{"a", "b"}: true, {"b", "c"}: true, {"a", "c"}: true,
	}, mustPairs(t, rt, "tc"))

	require.NoError(t, rt.Insert("e", "c", "d"))
	rt.Poll()
	assert.Equal(t, map[[2]string]bool{
		{"a", "b"}: true, {"b", "c"}: true, {"c", "d"}: true,
		{"a", "c"}: true, {"b", "d"}: true, {"a", "d"}: true,
	}, mustPairs(t, rt, "tc"))
}

// Scenario 3: deletion re-derivation. Removing an edge that is not
// the only support for a derived fact leaves that fact intact; removing
// the one that was its sole support retracts it.
func TestDeletionRetractsOnlyUnsupportedFacts(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	// Diamond: a->b->d and a->c->d, so tc(a,d) has two independent
	// groundings through b and through c.
	for _, e := range [][2]string{{"a", "b"}, {"b", "d"}, {"a", "c"}, {"c", "d"}} {
		require.NoError(t, rt.Insert("e", e[0], e[1]))
	}
	rt.Poll()
	require.True(t, mustPairs(t, rt, "tc")[[2]string{"a", "d"}])

	require.NoError(t, rt.Remove(query.New("e", query.Bound("a"), query.Bound("b"))))
	rt.Poll()
	// tc(a,d) still holds via a->c->d.
	assert.True(t, mustPairs(t, rt, "tc")[[2]string{"a", "d"}])
	assert.False(t, mustPairs(t, rt, "tc")[[2]string{"a", "b"}])

	require.NoError(t, rt.Remove(query.New("e", query.Bound("c"), query.Bound("d"))))
	rt.Poll()
	// Now neither path survives.
	assert.False(t, mustPairs(t, rt, "tc")[[2]string{"a", "d"}])
}

// Tricky self-join case: tc(y,z) chains into itself, so a fact's
// support can route back through the recursive rule rather than only
// the base rule. Removing the middle edge b->c must unwind every
// derived fact whose only derivation went through it.
func TestDeletionCascadesThroughRecursiveRule(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		require.NoError(t, rt.Insert("e", e[0], e[1]))
	}
	rt.Poll()

	require.NoError(t, rt.Remove(query.New("e", query.Bound("b"), query.Bound("c"))))
	rt.Poll()

	got := mustPairs(t, rt, "tc")
	assert.Equal(t, map[[2]string]bool{
		{"a", "b"}: true, {"c", "d"}: true,
	}, got)
}

// Scenario 4: a program that fails range restriction is rejected at
// New, before any store is built.
func TestProgramRejectedForUnrangeRestrictedHead(t *testing.T) {
	x, y := rule.Var("x"), rule.Var("y")
	bad := rule.Program{
		Rules: []rule.Rule{{
			Head: rule.Atom{Relation: "r", Args: []rule.Term{x, y}},
			Body: []rule.BodyAtom{{Atom: rule.Atom{Relation: "e", Args: []rule.Term{x}}}},
		}},
	}
	_, err := New(&bad, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProgramInvalid))
}

// Scenario 5: arity mismatch on Insert is rejected without mutating
// the store.
func TestInsertRejectsArityMismatch(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	err = rt.Insert("e", "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrArityMismatch))
}

// Scenario 6: operations against an unknown relation are rejected.
func TestUnknownRelationRejected(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	err = rt.Insert("nope", "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnknownRelation))

	_, err = rt.Contains("nope", "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnknownRelation))

	_, err = rt.Query(query.New("nope", query.Any(), query.Any()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnknownRelation))
}

// Writing directly to an intensional relation is rejected: only the
// rules may populate tc.
func TestInsertRejectsIntensionalRelation(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	err = rt.Insert("tc", "a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidInsert))
}

// Pattern-based removal retracts every matching fact in one call,
// including through a wildcard column, not just a single fully-ground
// tuple.
func TestRemoveWildcardRetractsEveryMatch(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	for _, e := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}} {
		require.NoError(t, rt.Insert("e", e[0], e[1]))
	}
	rt.Poll()
	require.True(t, mustPairs(t, rt, "tc")[[2]string{"a", "b"}])
	require.True(t, mustPairs(t, rt, "tc")[[2]string{"a", "c"}])

	require.NoError(t, rt.Remove(query.New("e", query.Bound("a"), query.Any())))
	rt.Poll()

	got := mustPairs(t, rt, "tc")
	assert.False(t, got[[2]string{"a", "b"}])
	assert.False(t, got[[2]string{"a", "c"}])
	assert.True(t, got[[2]string{"b", "d"}])
}

// Remove against an intensional relation is rejected, and a pattern
// matching nothing is a no-op rather than an error.
func TestRemoveRejectsIntensionalRelationAndToleratesEmptyMatch(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	err = rt.Remove(query.New("tc", query.Bound("a"), query.Bound("b")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidRemoval))

	require.NoError(t, rt.Remove(query.New("e", query.Bound("nope"), query.Any())))
}

func TestContainsReflectsSettledStateOnly(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)

	require.NoError(t, rt.Insert("e", "a", "b"))
	ok, err := rt.Contains("tc", "a", "b")
	require.NoError(t, err)
	assert.False(t, ok, "tc(a,b) must not be visible before Poll")

	rt.Poll()
	ok, err = rt.Contains("tc", "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSafeReflectsPendingWork(t *testing.T) {
	rt, err := New(transitiveClosure(), nil)
	require.NoError(t, err)
	assert.True(t, rt.Safe())

	require.NoError(t, rt.Insert("e", "a", "b"))
	assert.False(t, rt.Safe())

	rt.Poll()
	assert.True(t, rt.Safe())
}

func TestEventsRecordPollLifecycle(t *testing.T) {
	// A nil handler disables collection, so pass a no-op one.
	rt, err := New(transitiveClosure(), func(annotations.Event) {})
	require.NoError(t, err)

	require.NoError(t, rt.Insert("e", "a", "b"))
	rt.Poll()

	events := rt.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "poll/begin", events[0].Name)
	assert.Equal(t, "poll/complete", events[len(events)-1].Name)

	rt.ResetEvents()
	assert.Empty(t, rt.Events())
}

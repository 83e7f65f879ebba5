package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreau/semidatalog/datalog"
	"github.com/nmoreau/semidatalog/datalog/errs"
	"github.com/nmoreau/semidatalog/datalog/planner"
	"github.com/nmoreau/semidatalog/datalog/rule"
	"github.com/nmoreau/semidatalog/datalog/storage"
)

func setup(t *testing.T) (*storage.Store, *datalog.Interner) {
	t.Helper()
	schema := &rule.Schema{
		Relations: map[rule.Symbol]*rule.RelationInfo{
			"e": {Symbol: "e", Arity: 2, Kind: rule.Extensional},
		},
	}
	store := storage.NewStore(schema, []planner.IndexDescriptor{{Relation: "e", Bound: []int{0}}})
	in := datalog.NewInterner()
	for _, pair := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}} {
		_, err := store.Insert("e", in.InternTuple(pair[0], pair[1]))
		require.NoError(t, err)
	}
	r, err := store.Relation("e")
	require.NoError(t, err)
	r.SwapDeltas()
	r.SwapDeltas() // now stable
	return store, in
}

func TestRunWithAllWildcardsReturnsEverything(t *testing.T) {
	store, in := setup(t)
	rows, err := Run(store, in, New("e", Any(), Any()))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRunWithOneBoundColumn(t *testing.T) {
	store, in := setup(t)
	rows, err := Run(store, in, New("e", Bound("a"), Any()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "a", row[0])
	}
}

func TestRunWithAllColumnsBound(t *testing.T) {
	store, in := setup(t)
	rows, err := Run(store, in, New("e", Bound("a"), Bound("b")))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Tuple{"a", "b"}, rows[0])
}

func TestRunRejectsUnknownRelation(t *testing.T) {
	store, in := setup(t)
	_, err := Run(store, in, New("nope", Any(), Any()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnknownRelation))
}

func TestRunRejectsArityMismatch(t *testing.T) {
	store, in := setup(t)
	_, err := Run(store, in, New("e", Any()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrArityMismatch))
}

func TestRunWithNeverInternedConstantMatchesNothing(t *testing.T) {
	store, in := setup(t)
	rows, err := Run(store, in, New("e", Bound("never-seen"), Any()))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

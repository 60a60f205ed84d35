// Package storetest holds the behaviour every store.Store must show.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/scenario"
	"github.com/spektr-org/spektr-olap/scenario/store"
)

func record(name string, newValue float64) store.Record {
	share := 0.4
	return store.Record{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Cells: []store.CellRecord{{
			Coordinate:    []string{"[Time].[2024]", "[Product].[A]"},
			NewValue:      newValue,
			PreviousValue: 300,
			Policy:        scenario.WeightedIncrement,
			Weight:        &share,
			RecordedAt:    time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
		}},
	}
}

// Run exercises st, which must start empty.
func Run(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	ids, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = st.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.Delete(ctx, uuid.NewString()), store.ErrNotFound)

	first := record("first", 500)
	second := record("second", 600)
	require.NoError(t, st.Put(ctx, first))
	require.NoError(t, st.Put(ctx, second))

	got, err := st.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, got.Name)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Cells, 1)
	assert.Equal(t, first.Cells[0].Coordinate, got.Cells[0].Coordinate)
	assert.Equal(t, scenario.WeightedIncrement, got.Cells[0].Policy)
	require.NotNil(t, got.Cells[0].Weight)
	assert.Equal(t, 0.4, *got.Cells[0].Weight)

	first.Cells[0].NewValue = 700
	require.NoError(t, st.Put(ctx, first), "put overwrites")
	got, err = st.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 700.0, got.Cells[0].NewValue)

	ids, err = st.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.IsIncreasing(t, ids)

	require.NoError(t, st.Delete(ctx, first.ID))
	_, err = st.Get(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	ids, err = st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
	"expenses/internal/storage"
)

func newConnectedStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "data", "expenses.db"))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

func TestStore_NotConnected(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "expenses.db"))

	_, err := s.List(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotConnected)

	_, err = s.Create(context.Background(), core.Expense{Description: "x", Amount: 1, Date: day(1)})
	assert.ErrorIs(t, err, storage.ErrNotConnected)
}

func TestStore_ConnectIsRepeatable(t *testing.T) {
	s := newConnectedStore(t)
	require.NoError(t, s.Connect(context.Background()))

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Connect(context.Background()))
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newConnectedStore(t)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	created, err := s.Create(ctx, core.Expense{Description: "Groceries", Amount: 42.5, Date: day(3)})
	require.NoError(t, err)
	require.NoError(t, core.ValidateID(created.ID))
	assert.Equal(t, "Groceries", created.Description)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := s.Update(ctx, created.ID, core.Expense{Description: "Market", Amount: 40, Date: day(4)})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Market", updated.Description)
	assert.Equal(t, 40.0, updated.Amount)
	assert.True(t, day(4).Equal(updated.Date))

	require.NoError(t, s.Delete(ctx, created.ID))
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, created.ID), core.ErrNotFound)
}

func TestStore_ListOrderedByDateDescending(t *testing.T) {
	ctx := context.Background()
	s := newConnectedStore(t)

	for _, d := range []int{5, 1, 9, 3} {
		_, err := s.Create(ctx, core.Expense{Description: "e", Amount: float64(d), Date: day(d)})
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].Date.After(list[i-1].Date), "list not sorted at %d", i)
	}
	assert.True(t, day(9).Equal(list[0].Date))
}

func TestStore_MissingAndMalformedIDs(t *testing.T) {
	ctx := context.Background()
	s := newConnectedStore(t)
	missing := core.NewID()

	_, err := s.Get(ctx, missing)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Update(ctx, missing, core.Expense{Description: "x", Amount: 1, Date: day(1)})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Get(ctx, "nope")
	assert.True(t, core.IsInvalidIdentifier(err))
	assert.True(t, core.IsInvalidIdentifier(s.Delete(ctx, "nope")))
}

func TestStore_IDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newConnectedStore(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		e, err := s.Create(ctx, core.Expense{Description: "e", Amount: 1, Date: day(1)})
		require.NoError(t, err)
		require.False(t, seen[e.ID])
		seen[e.ID] = true
	}
}

func TestStore_PersistsAcrossReconnect(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.db")

	s := New(path)
	require.NoError(t, s.Connect(ctx))
	created, err := s.Create(ctx, core.Expense{Description: "Rent", Amount: 900, Date: day(1)})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	s2 := New(path)
	require.NoError(t, s2.Connect(ctx))
	defer s2.Close(ctx)

	got, err := s2.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "syncpoint/internal/domain/sync"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLocalStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &syncdomain.StoredRecord{
		ResourceType: "note",
		ID:           "n-1",
		Payload:      []byte(`{"title":"hello"}`),
		Version:      3,
		ModifiedAt:   time.Now().UTC().Truncate(time.Millisecond),
		Hash:         "abc",
		SyncStatus:   syncdomain.StatusSynced,
	}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "note", "n-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Version, got.Version)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.Equal(t, syncdomain.StatusSynced, got.SyncStatus)
	assert.JSONEq(t, `{"title":"hello"}`, string(got.Payload))
	assert.True(t, rec.ModifiedAt.Equal(got.ModifiedAt))
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &syncdomain.StoredRecord{
		ResourceType: "note",
		ID:           "n-1",
		Payload:      []byte(`{"v":1}`),
		Version:      1,
		ModifiedAt:   time.Now(),
		SyncStatus:   syncdomain.StatusPending,
	}
	require.NoError(t, store.Put(ctx, rec))

	rec.Payload = []byte(`{"v":2}`)
	rec.Version = 2
	rec.SyncStatus = syncdomain.StatusSynced
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "note", "n-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))
}

func TestLocalStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "note", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &syncdomain.StoredRecord{
		ResourceType: "note", ID: "n-1", ModifiedAt: time.Now(),
	}))
	require.NoError(t, store.Delete(ctx, "note", "n-1"))

	_, err := store.Get(ctx, "note", "n-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_UpdateSyncStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &syncdomain.StoredRecord{
		ResourceType: "note", ID: "n-1", ModifiedAt: time.Now(),
		SyncStatus: syncdomain.StatusPending,
	}))
	require.NoError(t, store.UpdateSyncStatus(ctx, "note", "n-1", syncdomain.StatusSynced))

	got, err := store.Get(ctx, "note", "n-1")
	require.NoError(t, err)
	assert.Equal(t, syncdomain.StatusSynced, got.SyncStatus)
}

func TestLocalStore_Watermarks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Unknown type means pull from the beginning of time.
	wm, err := store.GetLastSyncTime(ctx, "note")
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	mark := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.UpdateLastSyncTime(ctx, "note", mark))

	wm, err = store.GetLastSyncTime(ctx, "note")
	require.NoError(t, err)
	assert.True(t, mark.Equal(wm))

	// Watermarks are independent per resource type.
	other, err := store.GetLastSyncTime(ctx, "task")
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

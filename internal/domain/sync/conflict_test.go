package sync

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testConflict() *Conflict {
	r := NewResolver(slog.Default())
	return r.NewConflict("client-1", "note", "res-1",
		VersionInfo{Version: 3, ModifiedAt: time.Now(), Hash: "aaa"},
		VersionInfo{Version: 5, ModifiedAt: time.Now().Add(time.Minute), Hash: "bbb"},
		json.RawMessage(`{"local":true}`),
		json.RawMessage(`{"remote":true}`),
	)
}

func TestResolver_Detect(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		local  *VersionInfo
		remote *VersionInfo
		want   bool
	}{
		{
			name:   "nil local is create not conflict",
			local:  nil,
			remote: &VersionInfo{Version: 1},
			want:   false,
		},
		{
			name:   "nil remote is delete not conflict",
			local:  &VersionInfo{Version: 1},
			remote: nil,
			want:   false,
		},
		{
			name:   "equal versions",
			local:  &VersionInfo{Version: 4},
			remote: &VersionInfo{Version: 4},
			want:   false,
		},
		{
			name:   "diverged versions",
			local:  &VersionInfo{Version: 2},
			remote: &VersionInfo{Version: 3},
			want:   true,
		},
		{
			name:   "timestamps within clock skew tolerance",
			local:  &VersionInfo{ModifiedAt: now},
			remote: &VersionInfo{ModifiedAt: now.Add(500 * time.Millisecond)},
			want:   false,
		},
		{
			name:   "timestamps beyond clock skew tolerance",
			local:  &VersionInfo{ModifiedAt: now},
			remote: &VersionInfo{ModifiedAt: now.Add(5 * time.Second)},
			want:   true,
		},
	}

	r := NewResolver(slog.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Detect(tt.local, tt.remote))
		})
	}
}

func TestResolver_Resolve_KeepLocal(t *testing.T) {
	r := NewResolver(slog.Default())
	conflict := testConflict()

	res, err := r.Resolve(conflict, PolicyKeepLocal)
	require.NoError(t, err)

	assert.Nil(t, res.Apply)
	require.NotNil(t, res.Requeue)
	assert.Equal(t, OpUpdate, res.Requeue.Op)
	assert.Equal(t, "res-1", res.Requeue.ResourceID)
	assert.JSONEq(t, `{"local":true}`, string(res.Requeue.Payload))
	assert.Equal(t, 5, res.Requeue.BaseVersion, "requeued against the server's current version")
	assert.Equal(t, ConflictResolved, conflict.Status)
	assert.Equal(t, string(PolicyKeepLocal), conflict.Resolution)
}

func TestResolver_Resolve_KeepRemote(t *testing.T) {
	r := NewResolver(slog.Default())
	conflict := testConflict()

	res, err := r.Resolve(conflict, PolicyKeepRemote)
	require.NoError(t, err)

	assert.Nil(t, res.Requeue)
	require.NotNil(t, res.Apply)
	assert.Equal(t, 5, res.Apply.Version)
	assert.JSONEq(t, `{"remote":true}`, string(res.Apply.Payload))
	assert.Equal(t, StatusSynced, res.Apply.SyncStatus)
	assert.Equal(t, ConflictResolved, conflict.Status)
}

func TestResolver_Resolve_Merge(t *testing.T) {
	r := NewResolver(slog.Default())
	r.RegisterMerge("note", func(local, remote json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"merged":true}`), nil
	})
	conflict := testConflict()

	res, err := r.Resolve(conflict, PolicyMerge)
	require.NoError(t, err)

	require.NotNil(t, res.Apply)
	assert.JSONEq(t, `{"merged":true}`, string(res.Apply.Payload))
	require.NotNil(t, res.Requeue, "merged payload must be pushed back")
	assert.JSONEq(t, `{"merged":true}`, string(res.Requeue.Payload))
	assert.Equal(t, 5, res.Requeue.BaseVersion)
}

func TestResolver_Resolve_MergeWithoutFunc(t *testing.T) {
	r := NewResolver(slog.Default())
	conflict := testConflict()

	_, err := r.Resolve(conflict, PolicyMerge)
	assert.ErrorIs(t, err, ErrNoMergeFunc)
	assert.Equal(t, ConflictPending, conflict.Status, "unresolved on merge error")
}

func TestResolver_Resolve_MergeFuncError(t *testing.T) {
	r := NewResolver(slog.Default())
	r.RegisterMerge("note", func(local, remote json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("incompatible shapes")
	})
	conflict := testConflict()

	_, err := r.Resolve(conflict, PolicyMerge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible shapes")
}

func TestResolver_Resolve_KeepBoth(t *testing.T) {
	r := NewResolver(slog.Default())
	conflict := testConflict()

	res, err := r.Resolve(conflict, PolicyKeepBoth)
	require.NoError(t, err)

	require.NotNil(t, res.Apply)
	assert.Equal(t, "res-1", res.Apply.ID, "remote keeps the contended identity")
	require.NotNil(t, res.Requeue)
	assert.Equal(t, OpCreate, res.Requeue.Op)
	assert.NotEqual(t, "res-1", res.Requeue.ResourceID, "local survives under a fresh identity")
	assert.JSONEq(t, `{"local":true}`, string(res.Requeue.Payload))
}

func TestResolver_Resolve_Manual(t *testing.T) {
	r := NewResolver(slog.Default())
	conflict := testConflict()

	res, err := r.Resolve(conflict, PolicyManual)
	require.NoError(t, err)

	assert.True(t, res.Pending)
	assert.Nil(t, res.Apply)
	assert.Nil(t, res.Requeue)
	assert.Equal(t, ConflictPending, conflict.Status, "manual leaves the conflict pending")
}

func TestResolver_Resolve_UnknownPolicy(t *testing.T) {
	r := NewResolver(slog.Default())
	_, err := r.Resolve(testConflict(), Policy("coin_flip"))
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestResolver_Resolve_ResolvedIsImmutable(t *testing.T) {
	r := NewResolver(slog.Default())
	conflict := testConflict()

	_, err := r.Resolve(conflict, PolicyKeepRemote)
	require.NoError(t, err)

	_, err = r.Resolve(conflict, PolicyKeepLocal)
	assert.ErrorIs(t, err, ErrConflictResolved)
	assert.Equal(t, string(PolicyKeepRemote), conflict.Resolution, "first resolution sticks")
}

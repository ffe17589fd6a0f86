package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"syncpoint/internal/app/client/config"
	"syncpoint/internal/domain/sync"
)

func testConfig(t *testing.T, serverAddress string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:           "local",
		ServerAddress: serverAddress,
		ConfigDir:     dir,
		ClientIDPath:  filepath.Join(dir, "client_id"),
		TokenPath:     filepath.Join(dir, "resume_token"),
		QueuePath:     filepath.Join(dir, "pending.json"),
		BatchSize:     100,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestApp_ClientIDPersists(t *testing.T) {
	cfg := testConfig(t, "localhost:1")

	first, err := New(cfg, testLogger())
	require.NoError(t, err)
	require.NotEmpty(t, first.ClientID())

	second, err := New(cfg, testLogger())
	require.NoError(t, err)
	assert.Equal(t, first.ClientID(), second.ClientID())
}

func TestApp_QueueOperationAssignsIdentity(t *testing.T) {
	cfg := testConfig(t, "localhost:1")
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	err = app.QueueOperation(sync.Operation{
		ResourceType: "note",
		ResourceID:   "n-1",
		Op:           sync.OpUpdate,
		Payload:      json.RawMessage(`{"title":"x"}`),
	})
	require.NoError(t, err)

	ops, err := app.PendingOperations()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.NotEmpty(t, ops[0].ID)
	assert.False(t, ops[0].Timestamp.IsZero())

	// The queue survives a restart.
	restarted, err := New(cfg, testLogger())
	require.NoError(t, err)
	ops, err = restarted.PendingOperations()
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestApp_SyncSubmitsQueueAndCachesToken(t *testing.T) {
	var gotReq sync.SyncRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sync", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := sync.SyncResponse{
			Success:             false,
			Error:               "remote service unavailable",
			ResumeToken:         "tok-123",
			TotalOperations:     2,
			CompletedOperations: 1,
			HasMore:             true,
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	cfg := testConfig(t, strings.TrimPrefix(srv.URL, "http://"))
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	require.NoError(t, app.QueueOperation(sync.Operation{
		ResourceType: "note", ResourceID: "n-1", Op: sync.OpCreate,
		Payload: json.RawMessage(`{}`),
	}))
	require.NoError(t, app.QueueOperation(sync.Operation{
		ResourceType: "note", ResourceID: "n-2", Op: sync.OpCreate,
		Payload: json.RawMessage(`{}`),
	}))

	resp, err := app.Sync(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, app.ClientID(), gotReq.ClientID)
	assert.Empty(t, gotReq.ResumeToken)
	assert.Len(t, gotReq.Operations, 2)
	assert.Equal(t, 50, gotReq.BatchSize)

	// An interrupted cycle keeps the queue and caches the token.
	ops, err := app.PendingOperations()
	require.NoError(t, err)
	assert.Len(t, ops, 2)

	assert.True(t, resp.HasMore)
	data, err := os.ReadFile(cfg.TokenPath)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", string(data))

	// The next sync presents the cached token and re-submits the same
	// operations; the server dedupes them by operation id.
	_, err = app.Sync(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", gotReq.ResumeToken)
	assert.Len(t, gotReq.Operations, 2)
}

func TestApp_SyncKeepsQueueOnServerFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A storage fault before the server recorded anything: no token,
		// no progress, just a structured failure.
		resp := sync.SyncResponse{Success: false, Error: "session storage unavailable"}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	cfg := testConfig(t, strings.TrimPrefix(srv.URL, "http://"))
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	require.NoError(t, app.QueueOperation(sync.Operation{
		ResourceType: "note", ResourceID: "n-1", Op: sync.OpCreate,
		Payload: json.RawMessage(`{}`),
	}))

	resp, err := app.Sync(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, resp.Success)

	// Nothing was accepted, so the operation must survive locally.
	ops, err := app.PendingOperations()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "n-1", ops[0].ResourceID)
}

func TestApp_SyncClearsTokenOnCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := sync.SyncResponse{Success: true, ResumeToken: "tok-done"}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	cfg := testConfig(t, strings.TrimPrefix(srv.URL, "http://"))
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.TokenPath, []byte("tok-old"), 0600))
	require.NoError(t, app.QueueOperation(sync.Operation{
		ResourceType: "note", ResourceID: "n-1", Op: sync.OpDelete,
	}))

	resp, err := app.Sync(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	_, err = os.ReadFile(cfg.TokenPath)
	assert.True(t, os.IsNotExist(err))

	// A successful cycle is the one place the queue is dropped.
	ops, err := app.PendingOperations()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestApp_SyncSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"title":"Conflict","detail":"synchronization already in progress"}`))
	}))
	defer srv.Close()

	cfg := testConfig(t, strings.TrimPrefix(srv.URL, "http://"))
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	_, err = app.Sync(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synchronization already in progress")

	// A failed request keeps the queue intact.
	require.NoError(t, app.QueueOperation(sync.Operation{
		ResourceType: "note", ResourceID: "n-1", Op: sync.OpDelete,
	}))
	_, err = app.Sync(context.Background(), 0)
	require.Error(t, err)

	ops, err := app.PendingOperations()
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

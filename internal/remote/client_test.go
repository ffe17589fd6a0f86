package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"syncpoint/internal/domain/sync"
)

func TestClient_Batch(t *testing.T) {
	var received batchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/batch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(batchResponse{Results: []sync.BatchResult{
			{Status: 201, Version: 1},
			{Status: 409, Current: &sync.StoredRecord{ID: "r-2", Version: 7}},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	results, err := c.Batch(context.Background(), "client-1", []sync.BatchEntry{
		{OperationID: "op-1", Method: sync.OpCreate, ResourceType: "note", ResourceID: "r-1", Payload: []byte(`{}`)},
		{OperationID: "op-2", Method: sync.OpUpdate, ResourceType: "note", ResourceID: "r-2", BaseVersion: 3},
	})

	require.NoError(t, err)
	assert.Equal(t, "client-1", received.ClientID)
	require.Len(t, received.Entries, 2)
	assert.Equal(t, "op-2", received.Entries[1].OperationID)

	require.Len(t, results, 2)
	assert.True(t, results[0].IsSuccess())
	assert.True(t, results[1].IsConflict())
	assert.Equal(t, 7, results[1].Current.Version)
}

func TestClient_Batch_TransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", slog.Default())

	_, err := c.Batch(context.Background(), "client-1", []sync.BatchEntry{{OperationID: "op-1"}})
	assert.ErrorIs(t, err, sync.ErrRemoteUnavailable)
}

func TestClient_Search(t *testing.T) {
	watermark := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/resources/note", r.URL.Path)
		assert.Equal(t, watermark.Format(time.RFC3339Nano), r.URL.Query().Get("modified_since"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))

		json.NewEncoder(w).Encode(sync.RemotePage{
			Records: []sync.StoredRecord{{ResourceType: "note", ID: "n-1", Version: 2}},
			HasMore: true,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	page, err := c.Search(context.Background(), "note", watermark, 50, 0)

	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "n-1", page.Records[0].ID)
}

func TestClient_Search_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "shard offline"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, slog.Default())
	_, err := c.Search(context.Background(), "note", time.Time{}, 10, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "shard offline")
}

package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// BatchEntry one entry of a batch transaction sent to the remote server.
type BatchEntry struct {
	OperationID  string          `json:"operation_id"`
	Method       OpType          `json:"method"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	BaseVersion  int             `json:"base_version,omitempty"`
}

// BatchResult per-entry status returned by the remote server. On a 409 the
// server reports its current version of the record so the conflict can be
// resolved without another round trip.
type BatchResult struct {
	Status  int           `json:"status"`
	Version int           `json:"version,omitempty"`
	Current *StoredRecord `json:"current,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RemotePage one page of a delta search.
type RemotePage struct {
	Records []StoredRecord `json:"records"`
	HasMore bool           `json:"has_more"`
}

// RemoteClient the remote resource server, reduced to the two endpoints the
// engine needs: an ordered batch transaction and a modified-since search.
type RemoteClient interface {
	Batch(ctx context.Context, clientID string, entries []BatchEntry) ([]BatchResult, error)
	Search(ctx context.Context, resourceType string, modifiedSince time.Time, limit, offset int) (*RemotePage, error)
}

// IsSuccess reports a 2xx entry status.
func (r BatchResult) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsConflict reports a version conflict entry status.
func (r BatchResult) IsConflict() bool {
	return r.Status == http.StatusConflict
}

// IsTransient reports an entry status worth retrying with backoff.
func (r BatchResult) IsTransient() bool {
	return r.Status >= 500 || r.Status == http.StatusTooManyRequests
}

package sync

import (
	"encoding/json"
	"time"
)

// SessionStatus lifecycle of a synchronization session
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionExpired   SessionStatus = "expired"
)

// OpType client-originated mutation kind
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Session represents one logical synchronization attempt for a client.
// A session owns the operations submitted to it until each operation has a
// terminal outcome. TokenHash is the sha256 of the opaque resume token.
type Session struct {
	ID                  string        `json:"session_id"`
	ClientID            string        `json:"client_id"`
	TokenHash           string        `json:"-"`
	TotalOperations     int           `json:"total_operations"`
	CompletedOperations int           `json:"completed_operations"`
	Cursor              int           `json:"cursor"`
	Status              SessionStatus `json:"status"`
	LastOperationID     string        `json:"last_operation_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	LastActivityAt      time.Time     `json:"last_activity_at"`
}

// HasMore reports whether the session still has unprocessed operations.
func (s *Session) HasMore() bool {
	return s.CompletedOperations < s.TotalOperations
}

// Operation one client-assigned mutation. ID is the idempotency key:
// replaying an operation that already has a recorded outcome must not
// apply it a second time. Seq is the submission order inside the session.
type Operation struct {
	ID           string          `json:"id"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Op           OpType          `json:"operation"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	BaseVersion  int             `json:"base_version,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Seq          int             `json:"-"`
}

// Checkpoint persisted snapshot of session progress, written after each
// committed batch and read on resume.
type Checkpoint struct {
	SessionID           string        `json:"session_id"`
	TotalOperations     int           `json:"total_operations"`
	CompletedOperations int           `json:"completed_operations"`
	Cursor              int           `json:"cursor"`
	Status              SessionStatus `json:"status"`
	LastOperationID     string        `json:"last_successful_operation_id,omitempty"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// VersionInfo identifies one side of a conflict.
type VersionInfo struct {
	Version    int       `json:"version"`
	ModifiedAt time.Time `json:"modified_at"`
	Hash       string    `json:"hash,omitempty"`
}

// ConflictStatus state of a persisted conflict
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict detected divergence between the local and remote version of one
// record. Persisted until resolved; a resolved conflict is immutable.
type Conflict struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	Local         VersionInfo     `json:"local_version"`
	Remote        VersionInfo     `json:"remote_version"`
	LocalPayload  json.RawMessage `json:"local_payload,omitempty"`
	RemotePayload json.RawMessage `json:"remote_payload,omitempty"`
	DetectedAt    time.Time       `json:"detected_at"`
	Status        ConflictStatus  `json:"status"`
	Resolution    string          `json:"resolution,omitempty"`
	ResolvedAt    time.Time       `json:"resolved_at,omitempty"`
}

// QueueItem one retryable unit of work created on a transient failure.
// Removed on success; moved to the terminal failed list once attempts
// exceed the strategy's MaxAttempts.
type QueueItem struct {
	ID           string          `json:"id"`
	ClientID     string          `json:"client_id"`
	OperationID  string          `json:"operation_id"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Op           OpType          `json:"operation"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	BaseVersion  int             `json:"base_version,omitempty"`
	Priority     int             `json:"priority"`
	Attempts     int             `json:"attempts"`
	LastAttempt  time.Time       `json:"last_attempt,omitempty"`
	NextAttempt  time.Time       `json:"next_attempt"`
	Error        string          `json:"error,omitempty"`
}

// Direction of a per-resource-type strategy
type Direction string

const (
	DirectionPush          Direction = "push"
	DirectionPull          Direction = "pull"
	DirectionBidirectional Direction = "bidirectional"
)

// Policy conflict resolution policy
type Policy string

const (
	PolicyKeepLocal  Policy = "keep_local"
	PolicyKeepRemote Policy = "keep_remote"
	PolicyMerge      Policy = "merge"
	PolicyKeepBoth   Policy = "keep_both"
	PolicyManual     Policy = "manual"
)

// RetryPolicy backoff configuration for queued retries
type RetryPolicy struct {
	MaxAttempts       int     `json:"max_attempts"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
	MaxBackoffSeconds int     `json:"max_backoff_seconds"`
}

// Strategy per-resource-type synchronization policy. Lower priority is
// processed sooner.
type Strategy struct {
	ResourceType       string      `json:"resource_type"`
	Direction          Direction   `json:"direction"`
	BatchSize          int         `json:"batch_size"`
	Priority           int         `json:"priority"`
	ConflictResolution Policy      `json:"conflict_resolution"`
	Retry              RetryPolicy `json:"retry_policy"`
}

// MergeFunc caller-supplied field-level merge used by PolicyMerge.
type MergeFunc func(local, remote json.RawMessage) (json.RawMessage, error)

// StoredRecord a record held in the local store, with its sync bookkeeping.
type StoredRecord struct {
	ResourceType string          `json:"resource_type"`
	ID           string          `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	Version      int             `json:"version"`
	ModifiedAt   time.Time       `json:"modified_at"`
	Hash         string          `json:"hash,omitempty"`
	SyncStatus   string          `json:"sync_status,omitempty"`
	Deleted      bool            `json:"deleted,omitempty"`
}

// Sync status values stored per record in the local store.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

// Stats per-client synchronization counters.
type Stats struct {
	ClientID       string    `json:"client_id"`
	TotalCycles    int64     `json:"total_cycles"`
	TotalPushed    int64     `json:"total_pushed"`
	TotalPulled    int64     `json:"total_pulled"`
	TotalConflicts int64     `json:"total_conflicts"`
	TotalResolved  int64     `json:"total_resolved"`
	TotalRetried   int64     `json:"total_retried"`
	LastSync       time.Time `json:"last_sync"`
}

// StatsDelta increments applied to a client's counters at the end of a cycle.
type StatsDelta struct {
	Cycles    int64
	Pushed    int64
	Pulled    int64
	Conflicts int64
	Resolved  int64
	Retried   int64
}

package sync

import (
	"context"
	"time"
)

// Repository durable store for sessions, checkpoints, operations, conflicts
// and the retry queue. Writes that advance a session's progress must be
// atomic with the checkpoint write; a session updated without its checkpoint
// is the primary source of duplicate-apply bugs on resume.
type Repository interface {
	// Sessions and checkpoints
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*Session, error)
	// SaveProgress writes the session row and its checkpoint in one transaction.
	SaveProgress(ctx context.Context, session *Session) error
	// CommitBatch records per-operation outcomes and advances the session and
	// its checkpoint in one transaction.
	CommitBatch(ctx context.Context, session *Session, outcomes []OperationResult) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status SessionStatus) error
	GetCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error)
	// SweepExpired marks sessions inactive since cutoff as expired and deletes
	// their checkpoints. Returns the number of sessions swept.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// Operations
	// AppendOperations adds operations to the session in submission order,
	// skipping any whose id was already accepted for the client. Returns the
	// number actually appended.
	AppendOperations(ctx context.Context, session *Session, ops []Operation) (int, error)
	// ListPendingOperations returns the session's operations without a
	// recorded outcome, ordered by submission.
	ListPendingOperations(ctx context.Context, sessionID string) ([]Operation, error)
	GetOperationOutcome(ctx context.Context, clientID, operationID string) (*OperationResult, error)

	// Conflicts
	SaveConflict(ctx context.Context, conflict *Conflict) error
	GetConflictByID(ctx context.Context, conflictID string) (*Conflict, error)
	ListPendingConflicts(ctx context.Context, clientID string) ([]*Conflict, error)
	MarkConflictResolved(ctx context.Context, conflictID, resolution string, resolvedAt time.Time) error

	// Retry queue
	EnqueueRetry(ctx context.Context, item *QueueItem) error
	ListDueRetries(ctx context.Context, clientID string, now time.Time) ([]*QueueItem, error)
	UpdateRetry(ctx context.Context, item *QueueItem) error
	DeleteRetry(ctx context.Context, itemID string) error
	// MarkRetryFailed moves the item to the terminal failed list.
	MarkRetryFailed(ctx context.Context, item *QueueItem) error
	ListFailedRetries(ctx context.Context, clientID string) ([]*QueueItem, error)

	// Statistics
	IncrementStats(ctx context.Context, clientID string, delta StatsDelta) error
	GetStats(ctx context.Context, clientID string) (*Stats, error)
}

// LocalStore durable local record cache consumed by the engine. Pulled
// remote changes are applied here; watermarks gate the next delta pull.
type LocalStore interface {
	Get(ctx context.Context, resourceType, id string) (*StoredRecord, error)
	Put(ctx context.Context, record *StoredRecord) error
	Delete(ctx context.Context, resourceType, id string) error
	UpdateSyncStatus(ctx context.Context, resourceType, id, status string) error
	GetLastSyncTime(ctx context.Context, resourceType string) (time.Time, error)
	UpdateLastSyncTime(ctx context.Context, resourceType string, t time.Time) error
}

package sync

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSyncInProgress    = errors.New("synchronization already in progress for session")
	ErrConflictNotFound  = errors.New("conflict not found")
	ErrConflictResolved  = errors.New("conflict already resolved")
	ErrUnknownPolicy     = errors.New("unknown conflict resolution policy")
	ErrNoMergeFunc       = errors.New("no merge function registered for resource type")
	ErrRemoteUnavailable = errors.New("remote server unavailable")
	ErrEmptyClientID     = errors.New("client id is required")
)

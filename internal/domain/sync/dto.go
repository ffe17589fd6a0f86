package sync

import "time"

// SyncRequest one synchronization attempt. Operations may be empty when the
// caller is purely resuming a previous session via ResumeToken.
type SyncRequest struct {
	ClientID    string      `json:"client_id" minLength:"1"`
	ResumeToken string      `json:"resume_token,omitempty"`
	Operations  []Operation `json:"operations,omitempty"`
	BatchSize   int         `json:"batch_size,omitempty" minimum:"0" maximum:"1000"`
}

// VersionPair versions reported to the caller for a conflicting operation.
type VersionPair struct {
	ClientVersion int `json:"client_version"`
	ServerVersion int `json:"server_version"`
}

// OperationResult per-operation outcome. Success is false for conflicts,
// queued retries and terminal rejections alike; Conflict and Error tell
// them apart.
type OperationResult struct {
	OperationID string       `json:"operation_id"`
	Success     bool         `json:"success"`
	Conflict    *VersionPair `json:"conflict,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// SyncResponse result of one synchronization cycle. Success is false only
// on an unrecoverable top-level fault; individual failures are reported in
// Operations.
type SyncResponse struct {
	Success             bool              `json:"success"`
	Error               string            `json:"error,omitempty"`
	ResumeToken         string            `json:"resume_token"`
	TotalOperations     int               `json:"total_operations"`
	CompletedOperations int               `json:"completed_operations"`
	HasMore             bool              `json:"has_more"`
	Operations          []OperationResult `json:"operations"`
	Conflicts           []Conflict        `json:"conflicts,omitempty"`
	Checkpoint          *Checkpoint       `json:"checkpoint_data,omitempty"`
	FailedRetries       []QueueItem       `json:"failed_retries,omitempty"`
}

// ResolveConflictRequest out-of-band resolution of a pending conflict.
type ResolveConflictRequest struct {
	Resolution Policy `json:"resolution" enum:"keep_local,keep_remote,merge,keep_both"`
}

// StatusResponse progress of a session plus the owning client's counters.
type StatusResponse struct {
	Session    *Session    `json:"session"`
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
	Stats      *Stats      `json:"stats,omitempty"`
	ServerTime time.Time   `json:"server_time"`
}

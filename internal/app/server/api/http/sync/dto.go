package sync

import (
	"syncpoint/internal/domain/sync"
)

type synchronizeInput struct {
	Body sync.SyncRequest
}

type synchronizeOutput struct {
	Body sync.SyncResponse
}

type sessionStatusInput struct {
	ID string `path:"id" doc:"Session identifier"`
}

type sessionStatusOutput struct {
	Body sync.StatusResponse
}

type listConflictsInput struct {
	ClientID string `query:"client_id" required:"true" doc:"Client whose pending conflicts to list"`
}

// ConflictsResponse list of a client's unresolved conflicts.
type ConflictsResponse struct {
	Conflicts []*sync.Conflict `json:"conflicts"`
}

type listConflictsOutput struct {
	Body ConflictsResponse
}

type resolveConflictInput struct {
	ID   string `path:"id" doc:"Conflict identifier"`
	Body sync.ResolveConflictRequest
}

// ResolveConflictResponse the conflict after applying the resolution.
type ResolveConflictResponse struct {
	Conflict *sync.Conflict `json:"conflict"`
}

type resolveConflictOutput struct {
	Body ResolveConflictResponse
}

type statsInput struct {
	ClientID string `query:"client_id" required:"true" doc:"Client whose counters to return"`
}

type statsOutput struct {
	Body sync.Stats
}

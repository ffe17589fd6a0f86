package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) synchronizeOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-cycle",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync",
		Summary:     "Run one synchronization cycle",
		Description: "Pushes the submitted operations in checkpointed batches, pulls remote deltas and reports per-operation outcomes. Supply the returned resume token to continue an interrupted session.",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) sessionStatusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-session-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/sessions/{id}",
		Summary:     "Get session progress",
		Description: "Returns the session, its latest checkpoint and the owning client's counters",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) listConflictsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-list-conflicts",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/conflicts",
		Summary:     "List pending conflicts",
		Description: "Returns a client's unresolved synchronization conflicts",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveConflictOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-resolve-conflict",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/conflicts/{id}/resolve",
		Summary:     "Resolve a pending conflict",
		Description: "Applies the requested resolution policy to a conflict left pending by the manual policy",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) statsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-client-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/stats",
		Summary:     "Get client synchronization counters",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

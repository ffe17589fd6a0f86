package sync

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"syncpoint/internal/domain/sync"
)

// Engine is the part of the synchronization engine the HTTP layer consumes.
type Engine interface {
	Synchronize(ctx context.Context, req sync.SyncRequest) (*sync.SyncResponse, error)
	Status(ctx context.Context, sessionID string) (*sync.StatusResponse, error)
	PendingConflicts(ctx context.Context, clientID string) ([]*sync.Conflict, error)
	ResolvePending(ctx context.Context, conflictID string, policy sync.Policy) (*sync.Conflict, error)
	ClientStats(ctx context.Context, clientID string) (*sync.Stats, error)
}

type Handler struct {
	engine     Engine
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(engine Engine, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		engine:     engine,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.synchronizeOp(), h.synchronize)
	huma.Register(api, h.sessionStatusOp(), h.sessionStatus)
	huma.Register(api, h.listConflictsOp(), h.listConflicts)
	huma.Register(api, h.resolveConflictOp(), h.resolveConflict)
	huma.Register(api, h.statsOp(), h.stats)
}

func (h *Handler) synchronize(ctx context.Context, input *synchronizeInput) (*synchronizeOutput, error) {
	response, err := h.engine.Synchronize(ctx, input.Body)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrSyncInProgress):
			return nil, huma.Error409Conflict("synchronization already in progress", err)
		case errors.Is(err, sync.ErrEmptyClientID):
			return nil, huma.Error422UnprocessableEntity("client_id is required", err)
		default:
			h.log.Error("synchronization failed", "error", err)
			return nil, huma.Error500InternalServerError("synchronization failed")
		}
	}

	return &synchronizeOutput{Body: *response}, nil
}

func (h *Handler) sessionStatus(ctx context.Context, input *sessionStatusInput) (*sessionStatusOutput, error) {
	response, err := h.engine.Status(ctx, input.ID)
	if err != nil {
		if errors.Is(err, sync.ErrSessionNotFound) {
			return nil, huma.Error404NotFound("session not found")
		}
		h.log.Error("failed to load session status", "session_id", input.ID, "error", err)
		return nil, huma.Error500InternalServerError("failed to load session status")
	}

	return &sessionStatusOutput{Body: *response}, nil
}

func (h *Handler) listConflicts(ctx context.Context, input *listConflictsInput) (*listConflictsOutput, error) {
	conflicts, err := h.engine.PendingConflicts(ctx, input.ClientID)
	if err != nil {
		h.log.Error("failed to list conflicts", "client_id", input.ClientID, "error", err)
		return nil, huma.Error500InternalServerError("failed to list conflicts")
	}

	if conflicts == nil {
		conflicts = []*sync.Conflict{}
	}
	return &listConflictsOutput{Body: ConflictsResponse{Conflicts: conflicts}}, nil
}

func (h *Handler) resolveConflict(ctx context.Context, input *resolveConflictInput) (*resolveConflictOutput, error) {
	conflict, err := h.engine.ResolvePending(ctx, input.ID, input.Body.Resolution)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrConflictNotFound):
			return nil, huma.Error404NotFound("conflict not found")
		case errors.Is(err, sync.ErrConflictResolved):
			return nil, huma.Error409Conflict("conflict already resolved")
		case errors.Is(err, sync.ErrUnknownPolicy), errors.Is(err, sync.ErrNoMergeFunc):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		default:
			h.log.Error("failed to resolve conflict", "conflict_id", input.ID, "error", err)
			return nil, huma.Error500InternalServerError("failed to resolve conflict")
		}
	}

	return &resolveConflictOutput{Body: ResolveConflictResponse{Conflict: conflict}}, nil
}

func (h *Handler) stats(ctx context.Context, input *statsInput) (*statsOutput, error) {
	stats, err := h.engine.ClientStats(ctx, input.ClientID)
	if err != nil {
		h.log.Error("failed to load stats", "client_id", input.ClientID, "error", err)
		return nil, huma.Error500InternalServerError("failed to load stats")
	}

	return &statsOutput{Body: *stats}, nil
}

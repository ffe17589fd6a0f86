package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	stdsync "sync"
	"time"

	"golang.org/x/exp/slog"

	"syncpoint/internal/metrics"
)

// EngineConfig optional engine wiring. Zero values fall back to defaults.
type EngineConfig struct {
	SessionTTL time.Duration
	Audit      AuditSink
	Metrics    *metrics.Metrics
}

// Engine drives one synchronization cycle per Synchronize call: it pushes
// pending operations in batches, pulls remote deltas per watermark, routes
// collisions to the conflict resolver, defers transient failures to the
// retry queue and checkpoints progress after every committed batch.
type Engine struct {
	repo        Repository
	local       LocalStore
	remote      RemoteClient
	strategies  *StrategyRegistry
	checkpoints *CheckpointManager
	resolver    *Resolver
	queue       *RetryQueue
	audit       AuditSink
	metrics     *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time

	inflight stdsync.Map // session id -> struct{}, single-flight guard
}

func NewEngine(repo Repository, local LocalStore, remote RemoteClient, strategies *StrategyRegistry, log *slog.Logger, cfg *EngineConfig) *Engine {
	if cfg == nil {
		cfg = &EngineConfig{}
	}
	if cfg.Audit == nil {
		cfg.Audit = NopAuditSink{}
	}

	engineLog := log.With(slog.String("component", "sync_engine"))
	return &Engine{
		repo:        repo,
		local:       local,
		remote:      remote,
		strategies:  strategies,
		checkpoints: NewCheckpointManager(repo, log, cfg.SessionTTL),
		resolver:    NewResolver(log),
		queue:       NewRetryQueue(repo, log),
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		log:         engineLog,
		now:         time.Now,
	}
}

// Resolver exposes the conflict resolver so callers can register per-type
// merge functions.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Checkpoints exposes the checkpoint manager (sweeper wiring).
func (e *Engine) Checkpoints() *CheckpointManager {
	return e.checkpoints
}

// Synchronize runs one cycle. A corrupt, expired or unknown resume token is
// treated exactly like no token: a new session is started with the
// operations supplied in the request, and no error is surfaced. A second
// concurrent call for the same session returns ErrSyncInProgress.
func (e *Engine) Synchronize(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	start := e.now()
	if req.ClientID == "" {
		return nil, ErrEmptyClientID
	}

	session, err := e.checkpoints.LoadSession(ctx, req.ResumeToken)
	if err != nil {
		return e.topLevelFailure(req.ResumeToken, session, err, start), nil
	}

	token := req.ResumeToken
	if session == nil {
		session, token, err = e.checkpoints.CreateSession(ctx, req.ClientID)
		if err != nil {
			return e.topLevelFailure("", nil, err, start), nil
		}
		e.audit.SessionStarted(session)
	} else {
		e.audit.SessionResumed(session)
	}

	if _, loaded := e.inflight.LoadOrStore(session.ID, struct{}{}); loaded {
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, session.ID)
	}
	defer e.inflight.Delete(session.ID)

	resp := &SyncResponse{Success: true, ResumeToken: token, Operations: []OperationResult{}}
	delta := StatsDelta{Cycles: 1}

	if err := e.acceptOperations(ctx, session, req.Operations, resp); err != nil {
		return e.topLevelFailure(token, session, err, start), nil
	}

	pending, err := e.repo.ListPendingOperations(ctx, session.ID)
	if err != nil {
		return e.topLevelFailure(token, session, err, start), nil
	}
	ordered := e.orderOperations(pending)

	completedNow := e.pushPhase(ctx, session, ordered, req.BatchSize, resp, &delta)

	if resp.Success {
		e.pullPhase(ctx, session.ClientID, resp, &delta)
	}
	if resp.Success {
		e.drainRetries(ctx, session.ClientID, resp, &delta)
	}

	// Sessions that arrive with nothing left to do complete without a batch.
	if resp.Success && session.Status == SessionActive && !session.HasMore() {
		session.Status = SessionCompleted
		if err := e.checkpoints.Persist(ctx, session); err != nil {
			e.log.Warn("failed to persist completed session", "session_id", session.ID, "error", err)
			session.Status = SessionActive
		} else {
			completedNow = true
		}
	}
	if completedNow && session.Status == SessionCompleted {
		e.audit.SessionCompleted(session)
	}

	if failed, err := e.repo.ListFailedRetries(ctx, session.ClientID); err != nil {
		e.log.Warn("failed to list exhausted retries", "client_id", session.ClientID, "error", err)
	} else {
		for _, item := range failed {
			resp.FailedRetries = append(resp.FailedRetries, *item)
		}
	}

	delta.Pushed = int64(countSuccesses(resp.Operations))
	if err := e.repo.IncrementStats(ctx, session.ClientID, delta); err != nil {
		e.log.Warn("failed to update sync stats", "client_id", session.ClientID, "error", err)
	}

	resp.TotalOperations = session.TotalOperations
	resp.CompletedOperations = session.CompletedOperations
	resp.HasMore = session.HasMore()
	if cp, err := e.repo.GetCheckpoint(ctx, session.ID); err == nil {
		resp.Checkpoint = cp
	}

	outcome := "ok"
	if !resp.Success {
		outcome = "failed"
	}
	e.metrics.ObserveCycle(outcome, e.now().Sub(start))

	e.log.Info("synchronization cycle finished",
		"session_id", session.ID,
		"client_id", session.ClientID,
		"completed", session.CompletedOperations,
		"total", session.TotalOperations,
		"conflicts", len(resp.Conflicts),
		"success", resp.Success,
		"duration", e.now().Sub(start))

	return resp, nil
}

// acceptOperations appends the request's operations to the session. An
// operation whose id was already accepted for this client is not appended
// again; if it already has a recorded outcome, that outcome is replayed in
// the response instead of re-applying the mutation.
func (e *Engine) acceptOperations(ctx context.Context, session *Session, ops []Operation, resp *SyncResponse) error {
	if len(ops) == 0 {
		return nil
	}

	appended, err := e.repo.AppendOperations(ctx, session, ops)
	if err != nil {
		return fmt.Errorf("accept operations: %w", err)
	}
	session.TotalOperations += appended

	if appended < len(ops) {
		for _, op := range ops {
			prev, err := e.repo.GetOperationOutcome(ctx, session.ClientID, op.ID)
			if err != nil || prev == nil {
				continue
			}
			resp.Operations = append(resp.Operations, *prev)
		}
	}
	return nil
}

// orderOperations sorts pending operations by (strategy priority, submission
// order) so the processing order is explicit and stable.
func (e *Engine) orderOperations(ops []Operation) []Operation {
	sort.SliceStable(ops, func(i, j int) bool {
		pi := e.strategies.For(ops[i].ResourceType).Priority
		pj := e.strategies.For(ops[j].ResourceType).Priority
		if pi != pj {
			return pi < pj
		}
		return ops[i].Seq < ops[j].Seq
	})
	return ops
}

// pushPhase processes the ordered pending operations in per-type batches,
// committing one checkpoint per batch. Returns whether the session reached
// completed status during this phase. Cancellation is honored at batch
// boundaries only: the in-flight batch is retried from its start on resume.
func (e *Engine) pushPhase(ctx context.Context, session *Session, ordered []Operation, batchOverride int, resp *SyncResponse, delta *StatsDelta) (completedNow bool) {
	i := 0
	for i < len(ordered) {
		if ctx.Err() != nil {
			e.log.Info("cycle interrupted at batch boundary", "session_id", session.ID, "cursor", session.Cursor)
			return false
		}

		batch := e.nextBatch(ordered, i, batchOverride)
		outcomes, err := e.pushBatch(ctx, session, batch, resp, delta)
		if err != nil {
			resp.Success = false
			resp.Error = err.Error()
			return false
		}

		session.CompletedOperations += len(batch)
		session.Cursor += len(batch)
		if session.CompletedOperations >= session.TotalOperations {
			session.Status = SessionCompleted
		}

		if err := e.checkpoints.Commit(ctx, session, outcomes); err != nil {
			// The batch is not durable: report the last good state.
			session.CompletedOperations -= len(batch)
			session.Cursor -= len(batch)
			session.Status = SessionActive
			resp.Success = false
			resp.Error = err.Error()
			return false
		}

		resp.Operations = append(resp.Operations, outcomes...)
		i += len(batch)
	}
	return session.Status == SessionCompleted
}

// nextBatch returns the contiguous run of same-resource-type operations
// starting at i, capped at the type's batch size (or the request override).
func (e *Engine) nextBatch(ordered []Operation, i, batchOverride int) []Operation {
	resourceType := ordered[i].ResourceType
	size := e.strategies.For(resourceType).BatchSize
	if batchOverride > 0 {
		size = batchOverride
	}
	j := i
	for j < len(ordered) && ordered[j].ResourceType == resourceType && j-i < size {
		j++
	}
	return ordered[i:j]
}

// pushBatch sends one batch to the remote server and classifies every
// per-entry status: success applies locally, 409 routes to the resolver,
// transient failures go to the retry queue, anything else is a terminal
// per-operation rejection. A failed transport call aborts the cycle.
func (e *Engine) pushBatch(ctx context.Context, session *Session, batch []Operation, resp *SyncResponse, delta *StatsDelta) ([]OperationResult, error) {
	outcomes := make([]OperationResult, 0, len(batch))
	entries := make([]BatchEntry, 0, len(batch))
	live := make([]Operation, 0, len(batch))

	for _, op := range batch {
		strategy := e.strategies.For(op.ResourceType)
		if strategy.Direction == DirectionPull {
			outcomes = append(outcomes, OperationResult{
				OperationID: op.ID,
				Error:       fmt.Sprintf("resource type %q is pull-only", op.ResourceType),
			})
			continue
		}
		entries = append(entries, BatchEntry{
			OperationID:  op.ID,
			Method:       op.Op,
			ResourceType: op.ResourceType,
			ResourceID:   op.ResourceID,
			Payload:      op.Payload,
			BaseVersion:  op.BaseVersion,
		})
		live = append(live, op)
	}

	if len(entries) == 0 {
		return outcomes, nil
	}

	results, err := e.remote.Batch(ctx, session.ClientID, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if len(results) != len(live) {
		return nil, fmt.Errorf("%w: got %d results for %d entries", ErrRemoteUnavailable, len(results), len(live))
	}

	for i, result := range results {
		op := live[i]
		strategy := e.strategies.For(op.ResourceType)

		switch {
		case result.IsSuccess():
			if err := e.applyPushed(ctx, op, result.Version); err != nil {
				e.log.Warn("pushed operation not reflected locally",
					"operation_id", op.ID, "error", err)
			}
			session.LastOperationID = op.ID
			outcomes = append(outcomes, OperationResult{OperationID: op.ID, Success: true})
			e.metrics.AddPushed(1)

		case result.IsConflict():
			outcome := e.handleConflict(ctx, session, op, result, strategy, resp, delta)
			outcomes = append(outcomes, outcome)

		case result.IsTransient():
			cause := errors.New(result.Error)
			if result.Error == "" {
				cause = fmt.Errorf("remote returned status %d", result.Status)
			}
			if err := e.queue.Enqueue(ctx, session.ClientID, op, strategy, cause); err != nil {
				e.log.Warn("failed to enqueue retry", "operation_id", op.ID, "error", err)
			}
			e.metrics.IncRetried()
			outcomes = append(outcomes, OperationResult{
				OperationID: op.ID,
				Error:       fmt.Sprintf("queued for retry: %v", cause),
			})

		default:
			outcomes = append(outcomes, OperationResult{
				OperationID: op.ID,
				Error:       terminalError(result),
			})
		}
	}

	return outcomes, nil
}

// applyPushed mirrors a successfully pushed operation into the local store
// so the cache agrees with the remote server.
func (e *Engine) applyPushed(ctx context.Context, op Operation, version int) error {
	if op.Op == OpDelete {
		return e.local.Delete(ctx, op.ResourceType, op.ResourceID)
	}
	if version == 0 {
		version = op.BaseVersion + 1
	}
	return e.local.Put(ctx, &StoredRecord{
		ResourceType: op.ResourceType,
		ID:           op.ResourceID,
		Payload:      op.Payload,
		Version:      version,
		ModifiedAt:   op.Timestamp,
		Hash:         PayloadHash(op.Payload),
		SyncStatus:   StatusSynced,
	})
}

// handleConflict persists the conflict, applies the configured policy and
// reports a structured conflict on the operation's result.
func (e *Engine) handleConflict(ctx context.Context, session *Session, op Operation, result BatchResult, strategy Strategy, resp *SyncResponse, delta *StatsDelta) OperationResult {
	serverVersion := result.Version
	remote := VersionInfo{Version: serverVersion}
	var remotePayload []byte
	if result.Current != nil {
		remote = VersionInfo{
			Version:    result.Current.Version,
			ModifiedAt: result.Current.ModifiedAt,
			Hash:       result.Current.Hash,
		}
		serverVersion = result.Current.Version
		remotePayload = result.Current.Payload
	}

	conflict := e.resolver.NewConflict(session.ClientID, op.ResourceType, op.ResourceID,
		VersionInfo{Version: op.BaseVersion, ModifiedAt: op.Timestamp, Hash: PayloadHash(op.Payload)},
		remote, op.Payload, remotePayload)

	delta.Conflicts++
	e.metrics.IncConflict()

	resolution, err := e.resolver.Resolve(conflict, strategy.ConflictResolution)
	if err != nil {
		e.log.Error("conflict resolution failed",
			"conflict_id", conflict.ID, "policy", strategy.ConflictResolution, "error", err)
	} else if !resolution.Pending {
		delta.Resolved++
		e.metrics.IncResolved()
	}

	if err := e.repo.SaveConflict(ctx, conflict); err != nil {
		e.log.Error("failed to persist conflict", "conflict_id", conflict.ID, "error", err)
	}

	if resolution != nil {
		if resolution.Apply != nil {
			if err := e.local.Put(ctx, resolution.Apply); err != nil {
				e.log.Warn("failed to apply resolution locally", "conflict_id", conflict.ID, "error", err)
			}
		}
		if resolution.Requeue != nil {
			appended, err := e.repo.AppendOperations(ctx, session, []Operation{*resolution.Requeue})
			if err != nil {
				e.log.Warn("failed to requeue resolved operation", "conflict_id", conflict.ID, "error", err)
			} else {
				session.TotalOperations += appended
			}
		}
	}

	resp.Conflicts = append(resp.Conflicts, *conflict)
	return OperationResult{
		OperationID: op.ID,
		Conflict: &VersionPair{
			ClientVersion: op.BaseVersion,
			ServerVersion: serverVersion,
		},
	}
}

// pullPhase fetches remote deltas for every pull-capable strategy, ordered
// by priority, and applies them to the local store. The watermark advances
// only after a page is durably applied.
func (e *Engine) pullPhase(ctx context.Context, clientID string, resp *SyncResponse, delta *StatsDelta) {
	for _, strategy := range e.strategies.Ordered() {
		if strategy.Direction == DirectionPush {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		pulled, err := e.pullResourceType(ctx, clientID, strategy, resp, delta)
		if err != nil {
			// Pull failures do not fail the cycle; the watermark stays put
			// and the next cycle retries the same window.
			e.log.Warn("delta pull failed",
				"resource_type", strategy.ResourceType, "error", err)
			continue
		}
		delta.Pulled += int64(pulled)
		e.metrics.AddPulled(pulled)
	}
}

func (e *Engine) pullResourceType(ctx context.Context, clientID string, strategy Strategy, resp *SyncResponse, delta *StatsDelta) (int, error) {
	watermark, err := e.local.GetLastSyncTime(ctx, strategy.ResourceType)
	if err != nil {
		return 0, fmt.Errorf("read watermark: %w", err)
	}

	pulled := 0
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return pulled, err
		}

		page, err := e.remote.Search(ctx, strategy.ResourceType, watermark, strategy.BatchSize, offset)
		if err != nil {
			return pulled, fmt.Errorf("search remote changes: %w", err)
		}

		// An empty page cannot advance the offset; trusting its HasMore
		// would spin here forever.
		if len(page.Records) == 0 {
			return pulled, nil
		}

		var maxModified time.Time
		for i := range page.Records {
			record := &page.Records[i]
			applied, err := e.applyRemote(ctx, clientID, record, strategy, resp, delta)
			if err != nil {
				return pulled, fmt.Errorf("apply remote change %s/%s: %w", record.ResourceType, record.ID, err)
			}
			if applied {
				pulled++
			}
			if record.ModifiedAt.After(maxModified) {
				maxModified = record.ModifiedAt
			}
		}

		if !maxModified.IsZero() {
			if err := e.local.UpdateLastSyncTime(ctx, strategy.ResourceType, maxModified); err != nil {
				return pulled, fmt.Errorf("advance watermark: %w", err)
			}
		}

		if !page.HasMore {
			return pulled, nil
		}
		offset += len(page.Records)
	}
}

// applyRemote writes one pulled record into the local store. A record with
// an unsynced local counterpart goes through conflict detection first; the
// push phase has already run, so surviving local divergence is real.
func (e *Engine) applyRemote(ctx context.Context, clientID string, record *StoredRecord, strategy Strategy, resp *SyncResponse, delta *StatsDelta) (bool, error) {
	local, err := e.local.Get(ctx, record.ResourceType, record.ID)
	if err == nil && local != nil && local.SyncStatus == StatusPending {
		localInfo := VersionInfo{Version: local.Version, ModifiedAt: local.ModifiedAt, Hash: local.Hash}
		remoteInfo := VersionInfo{Version: record.Version, ModifiedAt: record.ModifiedAt, Hash: record.Hash}
		if e.resolver.Detect(&localInfo, &remoteInfo) {
			conflict := e.resolver.NewConflict(clientID, record.ResourceType, record.ID,
				localInfo, remoteInfo, local.Payload, record.Payload)
			delta.Conflicts++
			e.metrics.IncConflict()

			resolution, resolveErr := e.resolver.Resolve(conflict, strategy.ConflictResolution)
			if resolveErr != nil {
				e.log.Error("pull conflict resolution failed", "conflict_id", conflict.ID, "error", resolveErr)
			} else if !resolution.Pending {
				delta.Resolved++
				e.metrics.IncResolved()
			}
			if err := e.repo.SaveConflict(ctx, conflict); err != nil {
				e.log.Error("failed to persist conflict", "conflict_id", conflict.ID, "error", err)
			}
			resp.Conflicts = append(resp.Conflicts, *conflict)

			if resolution == nil || resolution.Pending {
				// Local pending change stays; the record is not clobbered.
				return false, nil
			}
			if resolution.Apply != nil {
				if err := e.local.Put(ctx, resolution.Apply); err != nil {
					return false, err
				}
			}
			return true, nil
		}
	}

	if record.Deleted {
		if err := e.local.Delete(ctx, record.ResourceType, record.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	record.SyncStatus = StatusSynced
	if err := e.local.Put(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// drainRetries runs due queue items through the remote server.
func (e *Engine) drainRetries(ctx context.Context, clientID string, resp *SyncResponse, delta *StatsDelta) {
	result, err := e.queue.Drain(ctx, clientID, e.strategies, e.retryAttempt)
	if err != nil {
		e.log.Warn("retry drain aborted", "client_id", clientID, "error", err)
		return
	}
	delta.Retried += int64(len(result.Cleared) + len(result.Failed))
	e.metrics.AddExhausted(len(result.Failed))
}

// retryAttempt performs one attempt for a queued item. A 409 during retry is
// handed to the resolver and clears the item; the conflict record takes over.
func (e *Engine) retryAttempt(ctx context.Context, item *QueueItem) error {
	entry := BatchEntry{
		OperationID:  item.OperationID,
		Method:       item.Op,
		ResourceType: item.ResourceType,
		ResourceID:   item.ResourceID,
		Payload:      item.Payload,
		BaseVersion:  item.BaseVersion,
	}
	results, err := e.remote.Batch(ctx, item.ClientID, []BatchEntry{entry})
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return fmt.Errorf("got %d results for single retry entry", len(results))
	}

	result := results[0]
	switch {
	case result.IsSuccess():
		op := Operation{
			ID:           item.OperationID,
			ResourceType: item.ResourceType,
			ResourceID:   item.ResourceID,
			Op:           item.Op,
			Payload:      item.Payload,
			BaseVersion:  item.BaseVersion,
			Timestamp:    e.now(),
		}
		if err := e.applyPushed(ctx, op, result.Version); err != nil {
			e.log.Warn("retried operation not reflected locally", "operation_id", item.OperationID, "error", err)
		}
		return nil

	case result.IsConflict():
		strategy := e.strategies.For(item.ResourceType)
		remote := VersionInfo{Version: result.Version}
		var remotePayload []byte
		if result.Current != nil {
			remote = VersionInfo{Version: result.Current.Version, ModifiedAt: result.Current.ModifiedAt, Hash: result.Current.Hash}
			remotePayload = result.Current.Payload
		}
		conflict := e.resolver.NewConflict(item.ClientID, item.ResourceType, item.ResourceID,
			VersionInfo{Version: item.BaseVersion, ModifiedAt: item.LastAttempt},
			remote, item.Payload, remotePayload)
		e.metrics.IncConflict()

		resolution, resolveErr := e.resolver.Resolve(conflict, strategy.ConflictResolution)
		if resolveErr != nil {
			e.log.Error("retry conflict resolution failed", "conflict_id", conflict.ID, "error", resolveErr)
		}
		if err := e.repo.SaveConflict(ctx, conflict); err != nil {
			e.log.Error("failed to persist conflict", "conflict_id", conflict.ID, "error", err)
		}
		if resolution != nil && resolution.Apply != nil {
			if err := e.local.Put(ctx, resolution.Apply); err != nil {
				e.log.Warn("failed to apply resolution locally", "conflict_id", conflict.ID, "error", err)
			}
		}
		return nil

	default:
		return errors.New(terminalError(result))
	}
}

// ResolvePending applies an out-of-band resolution to a persisted pending
// conflict (the manual policy's second half).
func (e *Engine) ResolvePending(ctx context.Context, conflictID string, policy Policy) (*Conflict, error) {
	conflict, err := e.repo.GetConflictByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if conflict.Status == ConflictResolved {
		return nil, ErrConflictResolved
	}
	if policy == PolicyManual {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	resolution, err := e.resolver.Resolve(conflict, policy)
	if err != nil {
		return nil, err
	}
	if resolution.Apply != nil {
		if err := e.local.Put(ctx, resolution.Apply); err != nil {
			return nil, fmt.Errorf("apply resolution: %w", err)
		}
	}
	if resolution.Requeue != nil {
		// Pushed on the client's next cycle through the retry queue.
		item := &QueueItem{
			ID:           resolution.Requeue.ID,
			ClientID:     conflict.ClientID,
			OperationID:  resolution.Requeue.ID,
			ResourceType: resolution.Requeue.ResourceType,
			ResourceID:   resolution.Requeue.ResourceID,
			Op:           resolution.Requeue.Op,
			Payload:      resolution.Requeue.Payload,
			BaseVersion:  resolution.Requeue.BaseVersion,
			Priority:     e.strategies.For(conflict.ResourceType).Priority,
			NextAttempt:  e.now(),
		}
		if err := e.repo.EnqueueRetry(ctx, item); err != nil {
			return nil, fmt.Errorf("requeue resolved operation: %w", err)
		}
	}

	if err := e.repo.MarkConflictResolved(ctx, conflict.ID, string(policy), conflict.ResolvedAt); err != nil {
		return nil, fmt.Errorf("record resolution: %w", err)
	}
	return conflict, nil
}

// Status reports a session's progress for the status endpoint.
func (e *Engine) Status(ctx context.Context, sessionID string) (*StatusResponse, error) {
	session, err := e.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	resp := &StatusResponse{Session: session, ServerTime: e.now()}
	if cp, err := e.repo.GetCheckpoint(ctx, sessionID); err == nil {
		resp.Checkpoint = cp
	}
	if stats, err := e.repo.GetStats(ctx, session.ClientID); err == nil {
		resp.Stats = stats
	}
	return resp, nil
}

// ClientStats reports a client's lifetime synchronization counters.
func (e *Engine) ClientStats(ctx context.Context, clientID string) (*Stats, error) {
	return e.repo.GetStats(ctx, clientID)
}

// PendingConflicts lists a client's unresolved conflicts.
func (e *Engine) PendingConflicts(ctx context.Context, clientID string) ([]*Conflict, error) {
	return e.repo.ListPendingConflicts(ctx, clientID)
}

func (e *Engine) topLevelFailure(token string, session *Session, cause error, start time.Time) *SyncResponse {
	e.log.Error("synchronization cycle failed", "error", cause)
	e.metrics.ObserveCycle("failed", e.now().Sub(start))
	resp := &SyncResponse{
		Success:     false,
		Error:       cause.Error(),
		ResumeToken: token,
		Operations:  []OperationResult{},
	}
	if session != nil {
		resp.TotalOperations = session.TotalOperations
		resp.CompletedOperations = session.CompletedOperations
		resp.HasMore = session.HasMore()
	}
	return resp
}

func countSuccesses(results []OperationResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

func terminalError(result BatchResult) string {
	if result.Error != "" {
		return result.Error
	}
	return http.StatusText(result.Status)
}

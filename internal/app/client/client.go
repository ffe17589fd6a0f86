package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"syncpoint/internal/app/client/config"
	"syncpoint/internal/domain/sync"
)

// App is the CLI-side application. It keeps a stable client identity,
// captures operations offline into a pending queue and replays them to the
// server, caching the resume token between runs so an interrupted cycle
// continues where it stopped.
type App struct {
	config     *config.Config
	log        *slog.Logger
	httpClient *httpClient
	clientID   string
	mu         gosync.Mutex
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	app := &App{
		config:     cfg,
		log:        log,
		httpClient: newHTTPClient(cfg, log),
	}

	clientID, err := app.loadOrCreateClientID()
	if err != nil {
		return nil, fmt.Errorf("failed to init client identity: %w", err)
	}
	app.clientID = clientID

	return app, nil
}

// ClientID returns the stable identifier of this installation.
func (a *App) ClientID() string {
	return a.clientID
}

// CheckConnection verifies the server is reachable.
func (a *App) CheckConnection(ctx context.Context) error {
	return a.httpClient.HealthCheck(ctx)
}

// QueueOperation appends a mutation to the local pending queue. Queued
// operations survive restarts and are submitted on the next Sync call.
func (a *App) QueueOperation(op sync.Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now().UTC()
	}

	ops, err := a.loadQueue()
	if err != nil {
		return err
	}
	ops = append(ops, op)
	return a.saveQueue(ops)
}

// PendingOperations returns the operations captured offline and not yet
// accepted by the server.
func (a *App) PendingOperations() ([]sync.Operation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadQueue()
}

// Sync runs one synchronization cycle: pending operations plus any cached
// resume token go to the server, and the returned token is cached for the
// next run. The pending queue is cleared only after a successful cycle; an
// interrupted cycle keeps both the queue and the token so the next call
// resumes instead of restarting.
func (a *App) Sync(ctx context.Context, batchSize int) (*sync.SyncResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ops, err := a.loadQueue()
	if err != nil {
		return nil, err
	}

	req := &sync.SyncRequest{
		ClientID:    a.clientID,
		ResumeToken: a.loadResumeToken(),
		Operations:  ops,
		BatchSize:   batchSize,
	}

	resp, err := a.httpClient.Sync(ctx, req)
	if err != nil {
		return nil, err
	}

	// A top-level fault can happen before the server recorded anything,
	// so the queue is cleared only on an unambiguously successful cycle.
	// Re-submitting already accepted operations is safe: the operation id
	// is the idempotency key and the server replays recorded outcomes.
	if len(ops) > 0 && resp.Success {
		if err := a.saveQueue(nil); err != nil {
			a.log.Warn("failed to clear pending queue", "error", err)
		}
	}

	if resp.HasMore {
		if err := a.saveResumeToken(resp.ResumeToken); err != nil {
			a.log.Warn("failed to cache resume token", "error", err)
		}
	} else {
		a.clearResumeToken()
	}

	return resp, nil
}

// SessionStatus fetches progress of a session.
func (a *App) SessionStatus(ctx context.Context, sessionID string) (*sync.StatusResponse, error) {
	return a.httpClient.SessionStatus(ctx, sessionID)
}

// Conflicts lists this client's unresolved conflicts.
func (a *App) Conflicts(ctx context.Context) ([]sync.Conflict, error) {
	return a.httpClient.Conflicts(ctx, a.clientID)
}

// ResolveConflict applies a policy to a pending conflict.
func (a *App) ResolveConflict(ctx context.Context, conflictID string, policy sync.Policy) (*sync.Conflict, error) {
	return a.httpClient.ResolveConflict(ctx, conflictID, policy)
}

// Stats fetches cumulative synchronization counters for this client.
func (a *App) Stats(ctx context.Context) (*sync.Stats, error) {
	return a.httpClient.Stats(ctx, a.clientID)
}

func (a *App) loadOrCreateClientID() (string, error) {
	data, err := os.ReadFile(a.config.ClientIDPath)
	if err == nil && len(data) > 0 {
		return string(data), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	id := uuid.NewString()
	if err := os.WriteFile(a.config.ClientIDPath, []byte(id), 0600); err != nil {
		return "", err
	}
	a.log.Debug("generated new client id", "client_id", id)
	return id, nil
}

func (a *App) loadResumeToken() string {
	data, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		return ""
	}
	return string(data)
}

func (a *App) saveResumeToken(token string) error {
	return os.WriteFile(a.config.TokenPath, []byte(token), 0600)
}

func (a *App) clearResumeToken() {
	if err := os.Remove(a.config.TokenPath); err != nil && !os.IsNotExist(err) {
		a.log.Warn("failed to remove resume token", "error", err)
	}
}

func (a *App) loadQueue() ([]sync.Operation, error) {
	data, err := os.ReadFile(a.config.QueuePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}

	var ops []sync.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("failed to decode pending queue: %w", err)
	}
	return ops, nil
}

func (a *App) saveQueue(ops []sync.Operation) error {
	if len(ops) == 0 {
		if err := os.Remove(a.config.QueuePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear pending queue: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pending queue: %w", err)
	}
	return os.WriteFile(a.config.QueuePath, data, 0600)
}

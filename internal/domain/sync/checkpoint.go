package sync

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// DefaultSessionTTL inactivity window after which a session can no longer
// be resumed.
const DefaultSessionTTL = 30 * time.Minute

// CheckpointManager owns the session lifecycle: creation, resume-token
// validation, progress persistence and expiry.
type CheckpointManager struct {
	repo Repository
	log  *slog.Logger
	ttl  time.Duration
	now  func() time.Time
}

func NewCheckpointManager(repo Repository, log *slog.Logger, ttl time.Duration) *CheckpointManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &CheckpointManager{
		repo: repo,
		log:  log.With(slog.String("component", "checkpoint")),
		ttl:  ttl,
		now:  time.Now,
	}
}

// CreateSession starts a fresh session for the client and returns it
// together with the raw resume token. Only the token's hash is stored.
func (m *CheckpointManager) CreateSession(ctx context.Context, clientID string) (*Session, string, error) {
	token, hash, err := newResumeToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate resume token: %w", err)
	}

	now := m.now()
	session := &Session{
		ID:             uuid.NewString(),
		ClientID:       clientID,
		TokenHash:      hash,
		Status:         SessionActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := m.repo.CreateSession(ctx, session); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	m.log.Debug("session created", "session_id", session.ID, "client_id", clientID)
	return session, token, nil
}

// LoadSession resolves a resume token to its active session. A token that is
// empty, unknown, expired or belongs to a non-active session yields (nil, nil):
// invalid tokens are never an error, the engine starts fresh instead.
func (m *CheckpointManager) LoadSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := m.repo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			m.log.Debug("unknown resume token, starting fresh")
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.Status != SessionActive {
		m.log.Debug("resume token for non-active session", "session_id", session.ID, "status", session.Status)
		return nil, nil
	}

	if m.now().Sub(session.LastActivityAt) > m.ttl {
		// Best-effort: mark it so the sweeper can collect the checkpoint.
		if err := m.repo.UpdateSessionStatus(ctx, session.ID, SessionExpired); err != nil {
			m.log.Warn("failed to expire stale session", "session_id", session.ID, "error", err)
		}
		m.log.Debug("resume token expired", "session_id", session.ID)
		return nil, nil
	}

	return session, nil
}

// Persist writes the session and its checkpoint atomically.
func (m *CheckpointManager) Persist(ctx context.Context, session *Session) error {
	session.LastActivityAt = m.now()
	if err := m.repo.SaveProgress(ctx, session); err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

// Commit records a batch's outcomes and advances the checkpoint in one
// transaction. A crash between batches therefore loses at most the
// in-flight batch.
func (m *CheckpointManager) Commit(ctx context.Context, session *Session, outcomes []OperationResult) error {
	session.LastActivityAt = m.now()
	if err := m.repo.CommitBatch(ctx, session, outcomes); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Expire marks the session unresumable.
func (m *CheckpointManager) Expire(ctx context.Context, session *Session) error {
	session.Status = SessionExpired
	return m.repo.UpdateSessionStatus(ctx, session.ID, SessionExpired)
}

// Sweep expires sessions inactive beyond the TTL and deletes their
// checkpoints. Completed sessions are left alone so recently finished work
// can still be detected as an idempotent replay.
func (m *CheckpointManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.repo.SweepExpired(ctx, m.now().Add(-m.ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	if n > 0 {
		m.log.Info("expired sessions swept", "count", n)
	}
	return n, nil
}

// TTL returns the configured inactivity window.
func (m *CheckpointManager) TTL() time.Duration {
	return m.ttl
}

func newResumeToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"syncpoint/internal/domain/sync"
)

// SyncRepository implements sync.Repository on PostgreSQL. Session,
// checkpoint and operation methods live here; conflicts, the retry queue
// and statistics are in sync_repository.go.
type SyncRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSyncRepository(db *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		db:  db,
		log: log.With(slog.String("component", "postgres_repository")),
	}
}

func (r *SyncRepository) CreateSession(ctx context.Context, session *sync.Session) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sync_sessions
			(id, client_id, token_hash, total_operations, completed_operations,
			 cursor, status, last_operation_id, created_at, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID,
		session.ClientID,
		session.TokenHash,
		session.TotalOperations,
		session.CompletedOperations,
		session.Cursor,
		session.Status,
		session.LastOperationID,
		session.CreatedAt,
		session.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, client_id, token_hash, total_operations, completed_operations,
	cursor, status, last_operation_id, created_at, last_activity_at`

func (r *SyncRepository) scanSession(row pgx.Row) (*sync.Session, error) {
	var s sync.Session
	err := row.Scan(
		&s.ID,
		&s.ClientID,
		&s.TokenHash,
		&s.TotalOperations,
		&s.CompletedOperations,
		&s.Cursor,
		&s.Status,
		&s.LastOperationID,
		&s.CreatedAt,
		&s.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

func (r *SyncRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*sync.Session, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sync_sessions WHERE token_hash = $1`,
		tokenHash)
	return r.scanSession(row)
}

func (r *SyncRepository) GetSessionByID(ctx context.Context, sessionID string) (*sync.Session, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sync_sessions WHERE id = $1`,
		sessionID)
	return r.scanSession(row)
}

func (r *SyncRepository) SaveProgress(ctx context.Context, session *sync.Session) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.saveProgressTx(ctx, tx, session); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *SyncRepository) saveProgressTx(ctx context.Context, tx pgx.Tx, session *sync.Session) error {
	_, err := tx.Exec(ctx,
		`UPDATE sync_sessions
		 SET total_operations = $2, completed_operations = $3, cursor = $4,
		     status = $5, last_operation_id = $6, last_activity_at = $7
		 WHERE id = $1`,
		session.ID,
		session.TotalOperations,
		session.CompletedOperations,
		session.Cursor,
		session.Status,
		session.LastOperationID,
		session.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO sync_checkpoints
			(session_id, total_operations, completed_operations, cursor,
			 status, last_operation_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id) DO UPDATE SET
			total_operations = EXCLUDED.total_operations,
			completed_operations = EXCLUDED.completed_operations,
			cursor = EXCLUDED.cursor,
			status = EXCLUDED.status,
			last_operation_id = EXCLUDED.last_operation_id,
			updated_at = EXCLUDED.updated_at`,
		session.ID,
		session.TotalOperations,
		session.CompletedOperations,
		session.Cursor,
		session.Status,
		session.LastOperationID,
		session.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert checkpoint: %w", err)
	}
	return nil
}

func (r *SyncRepository) CommitBatch(ctx context.Context, session *sync.Session, outcomes []sync.OperationResult) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, outcome := range outcomes {
		encoded, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("failed to marshal outcome %s: %w", outcome.OperationID, err)
		}
		_, err = tx.Exec(ctx,
			`UPDATE sync_operations SET outcome = $3
			 WHERE client_id = $1 AND operation_id = $2`,
			session.ClientID, outcome.OperationID, encoded)
		if err != nil {
			return fmt.Errorf("failed to record outcome %s: %w", outcome.OperationID, err)
		}
	}

	if err := r.saveProgressTx(ctx, tx, session); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *SyncRepository) UpdateSessionStatus(ctx context.Context, sessionID string, status sync.SessionStatus) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE sync_sessions SET status = $2 WHERE id = $1`,
		sessionID, status)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sync.ErrSessionNotFound
	}
	return nil
}

func (r *SyncRepository) GetCheckpoint(ctx context.Context, sessionID string) (*sync.Checkpoint, error) {
	var cp sync.Checkpoint
	err := r.db.Pool().QueryRow(ctx,
		`SELECT session_id, total_operations, completed_operations, cursor,
		        status, last_operation_id, updated_at
		 FROM sync_checkpoints WHERE session_id = $1`,
		sessionID).Scan(
		&cp.SessionID,
		&cp.TotalOperations,
		&cp.CompletedOperations,
		&cp.Cursor,
		&cp.Status,
		&cp.LastOperationID,
		&cp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &cp, nil
}

func (r *SyncRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE sync_sessions SET status = $1
		 WHERE status = $2 AND last_activity_at < $3
		 RETURNING id`,
		sync.SessionExpired, sync.SessionActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired session: %w", err)
		}
		expired = append(expired, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read expired sessions: %w", err)
	}

	if len(expired) > 0 {
		_, err = tx.Exec(ctx,
			`DELETE FROM sync_checkpoints WHERE session_id = ANY($1)`, expired)
		if err != nil {
			return 0, fmt.Errorf("failed to delete stale checkpoints: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int64(len(expired)), nil
}

func (r *SyncRepository) AppendOperations(ctx context.Context, session *sync.Session, ops []sync.Operation) (int, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var nextSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM sync_operations WHERE session_id = $1`,
		session.ID).Scan(&nextSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to read max seq: %w", err)
	}

	appended := 0
	for _, op := range ops {
		tag, err := tx.Exec(ctx,
			`INSERT INTO sync_operations
				(session_id, client_id, operation_id, seq, resource_type,
				 resource_id, operation, payload, base_version, client_timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (client_id, operation_id) DO NOTHING`,
			session.ID,
			session.ClientID,
			op.ID,
			nextSeq+appended+1,
			op.ResourceType,
			op.ResourceID,
			op.Op,
			[]byte(op.Payload),
			op.BaseVersion,
			op.Timestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append operation %s: %w", op.ID, err)
		}
		if tag.RowsAffected() > 0 {
			appended++
		}
	}

	if appended > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE sync_sessions
			 SET total_operations = total_operations + $2
			 WHERE id = $1`,
			session.ID, appended)
		if err != nil {
			return 0, fmt.Errorf("failed to bump session total: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return appended, nil
}

func (r *SyncRepository) ListPendingOperations(ctx context.Context, sessionID string) ([]sync.Operation, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT operation_id, resource_type, resource_id, operation,
		        payload, base_version, client_timestamp, seq
		 FROM sync_operations
		 WHERE session_id = $1 AND outcome IS NULL
		 ORDER BY seq ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending operations: %w", err)
	}
	defer rows.Close()

	var ops []sync.Operation
	for rows.Next() {
		var op sync.Operation
		var payload []byte
		err := rows.Scan(
			&op.ID,
			&op.ResourceType,
			&op.ResourceID,
			&op.Op,
			&payload,
			&op.BaseVersion,
			&op.Timestamp,
			&op.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Payload = payload
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending operations: %w", err)
	}
	return ops, nil
}

func (r *SyncRepository) GetOperationOutcome(ctx context.Context, clientID, operationID string) (*sync.OperationResult, error) {
	var encoded []byte
	err := r.db.Pool().QueryRow(ctx,
		`SELECT outcome FROM sync_operations
		 WHERE client_id = $1 AND operation_id = $2`,
		clientID, operationID).Scan(&encoded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get operation outcome: %w", err)
	}
	if encoded == nil {
		return nil, nil
	}

	var outcome sync.OperationResult
	if err := json.Unmarshal(encoded, &outcome); err != nil {
		return nil, fmt.Errorf("failed to parse operation outcome: %w", err)
	}
	return &outcome, nil
}

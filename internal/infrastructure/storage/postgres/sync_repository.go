package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"syncpoint/internal/domain/sync"
)

// Conflict, retry queue and statistics methods of SyncRepository.

func (r *SyncRepository) SaveConflict(ctx context.Context, conflict *sync.Conflict) error {
	var resolvedAt interface{}
	if !conflict.ResolvedAt.IsZero() {
		resolvedAt = conflict.ResolvedAt
	}

	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sync_conflicts
			(id, client_id, resource_type, resource_id,
			 local_version, local_modified_at, local_hash,
			 remote_version, remote_modified_at, remote_hash,
			 local_payload, remote_payload, detected_at, status, resolution, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			resolution = EXCLUDED.resolution,
			resolved_at = EXCLUDED.resolved_at`,
		conflict.ID,
		conflict.ClientID,
		conflict.ResourceType,
		conflict.ResourceID,
		conflict.Local.Version,
		conflict.Local.ModifiedAt,
		conflict.Local.Hash,
		conflict.Remote.Version,
		conflict.Remote.ModifiedAt,
		conflict.Remote.Hash,
		[]byte(conflict.LocalPayload),
		[]byte(conflict.RemotePayload),
		conflict.DetectedAt,
		conflict.Status,
		conflict.Resolution,
		resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}
	return nil
}

const conflictColumns = `id, client_id, resource_type, resource_id,
	local_version, local_modified_at, local_hash,
	remote_version, remote_modified_at, remote_hash,
	local_payload, remote_payload, detected_at, status, resolution, resolved_at`

func scanConflict(row pgx.Row) (*sync.Conflict, error) {
	var c sync.Conflict
	var localPayload, remotePayload []byte
	var resolvedAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.ResourceType,
		&c.ResourceID,
		&c.Local.Version,
		&c.Local.ModifiedAt,
		&c.Local.Hash,
		&c.Remote.Version,
		&c.Remote.ModifiedAt,
		&c.Remote.Hash,
		&localPayload,
		&remotePayload,
		&c.DetectedAt,
		&c.Status,
		&c.Resolution,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	c.LocalPayload = localPayload
	c.RemotePayload = remotePayload
	if resolvedAt.Valid {
		c.ResolvedAt = resolvedAt.Time
	}
	return &c, nil
}

func (r *SyncRepository) GetConflictByID(ctx context.Context, conflictID string) (*sync.Conflict, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts WHERE id = $1`,
		conflictID)
	conflict, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return conflict, nil
}

func (r *SyncRepository) ListPendingConflicts(ctx context.Context, clientID string) ([]*sync.Conflict, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts
		 WHERE client_id = $1 AND status = $2
		 ORDER BY detected_at DESC`,
		clientID, sync.ConflictPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*sync.Conflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending conflicts: %w", err)
	}
	return conflicts, nil
}

func (r *SyncRepository) MarkConflictResolved(ctx context.Context, conflictID, resolution string, resolvedAt time.Time) error {
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE sync_conflicts
		 SET status = $2, resolution = $3, resolved_at = $4
		 WHERE id = $1 AND status = $5`,
		conflictID, sync.ConflictResolved, resolution, resolvedAt, sync.ConflictPending)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either unknown or already resolved; distinguish for the caller.
		if _, err := r.GetConflictByID(ctx, conflictID); err != nil {
			return err
		}
		return sync.ErrConflictResolved
	}
	return nil
}

func (r *SyncRepository) EnqueueRetry(ctx context.Context, item *sync.QueueItem) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sync_retry_queue
			(id, client_id, operation_id, resource_type, resource_id, operation,
			 payload, base_version, priority, attempts, last_attempt, next_attempt, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO NOTHING`,
		item.ID,
		item.ClientID,
		item.OperationID,
		item.ResourceType,
		item.ResourceID,
		item.Op,
		[]byte(item.Payload),
		item.BaseVersion,
		item.Priority,
		item.Attempts,
		item.LastAttempt,
		item.NextAttempt,
		item.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue retry: %w", err)
	}
	return nil
}

const queueColumns = `id, client_id, operation_id, resource_type, resource_id,
	operation, payload, base_version, priority, attempts, last_attempt, next_attempt, error`

func (r *SyncRepository) listRetries(ctx context.Context, query string, args ...interface{}) ([]*sync.QueueItem, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query retry queue: %w", err)
	}
	defer rows.Close()

	var items []*sync.QueueItem
	for rows.Next() {
		var item sync.QueueItem
		var payload []byte
		err := rows.Scan(
			&item.ID,
			&item.ClientID,
			&item.OperationID,
			&item.ResourceType,
			&item.ResourceID,
			&item.Op,
			&payload,
			&item.BaseVersion,
			&item.Priority,
			&item.Attempts,
			&item.LastAttempt,
			&item.NextAttempt,
			&item.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Payload = payload
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read retry queue: %w", err)
	}
	return items, nil
}

func (r *SyncRepository) ListDueRetries(ctx context.Context, clientID string, now time.Time) ([]*sync.QueueItem, error) {
	return r.listRetries(ctx,
		`SELECT `+queueColumns+` FROM sync_retry_queue
		 WHERE client_id = $1 AND failed = false AND next_attempt <= $2
		 ORDER BY priority ASC, next_attempt ASC`,
		clientID, now)
}

func (r *SyncRepository) UpdateRetry(ctx context.Context, item *sync.QueueItem) error {
	_, err := r.db.Pool().Exec(ctx,
		`UPDATE sync_retry_queue
		 SET attempts = $2, last_attempt = $3, next_attempt = $4, error = $5
		 WHERE id = $1`,
		item.ID, item.Attempts, item.LastAttempt, item.NextAttempt, item.Error)
	if err != nil {
		return fmt.Errorf("failed to update retry: %w", err)
	}
	return nil
}

func (r *SyncRepository) DeleteRetry(ctx context.Context, itemID string) error {
	_, err := r.db.Pool().Exec(ctx,
		`DELETE FROM sync_retry_queue WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete retry: %w", err)
	}
	return nil
}

func (r *SyncRepository) MarkRetryFailed(ctx context.Context, item *sync.QueueItem) error {
	_, err := r.db.Pool().Exec(ctx,
		`UPDATE sync_retry_queue
		 SET failed = true, attempts = $2, last_attempt = $3, error = $4
		 WHERE id = $1`,
		item.ID, item.Attempts, item.LastAttempt, item.Error)
	if err != nil {
		return fmt.Errorf("failed to mark retry as failed: %w", err)
	}
	return nil
}

func (r *SyncRepository) ListFailedRetries(ctx context.Context, clientID string) ([]*sync.QueueItem, error) {
	return r.listRetries(ctx,
		`SELECT `+queueColumns+` FROM sync_retry_queue
		 WHERE client_id = $1 AND failed = true
		 ORDER BY last_attempt DESC`,
		clientID)
}

func (r *SyncRepository) IncrementStats(ctx context.Context, clientID string, delta sync.StatsDelta) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sync_stats
			(client_id, total_cycles, total_pushed, total_pulled,
			 total_conflicts, total_resolved, total_retried, last_sync)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (client_id) DO UPDATE SET
			total_cycles = sync_stats.total_cycles + EXCLUDED.total_cycles,
			total_pushed = sync_stats.total_pushed + EXCLUDED.total_pushed,
			total_pulled = sync_stats.total_pulled + EXCLUDED.total_pulled,
			total_conflicts = sync_stats.total_conflicts + EXCLUDED.total_conflicts,
			total_resolved = sync_stats.total_resolved + EXCLUDED.total_resolved,
			total_retried = sync_stats.total_retried + EXCLUDED.total_retried,
			last_sync = EXCLUDED.last_sync`,
		clientID,
		delta.Cycles,
		delta.Pushed,
		delta.Pulled,
		delta.Conflicts,
		delta.Resolved,
		delta.Retried,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment stats: %w", err)
	}
	return nil
}

func (r *SyncRepository) GetStats(ctx context.Context, clientID string) (*sync.Stats, error) {
	var stats sync.Stats
	var lastSync sql.NullTime

	err := r.db.Pool().QueryRow(ctx,
		`SELECT client_id, total_cycles, total_pushed, total_pulled,
		        total_conflicts, total_resolved, total_retried, last_sync
		 FROM sync_stats WHERE client_id = $1`,
		clientID).Scan(
		&stats.ClientID,
		&stats.TotalCycles,
		&stats.TotalPushed,
		&stats.TotalPulled,
		&stats.TotalConflicts,
		&stats.TotalResolved,
		&stats.TotalRetried,
		&lastSync,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &sync.Stats{ClientID: clientID}, nil
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	if lastSync.Valid {
		stats.LastSync = lastSync.Time
	}
	return &stats, nil
}

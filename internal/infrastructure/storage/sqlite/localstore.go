package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	syncdomain "syncpoint/internal/domain/sync"
)

// ErrNotFound is returned when the requested record is not in the store.
var ErrNotFound = errors.New("record not found")

// LocalStore sqlite-backed implementation of sync.LocalStore: the durable
// local record cache plus per-resource-type pull watermarks.
type LocalStore struct {
	db *sql.DB
}

func New(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	store := &LocalStore{db: db}
	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local store tables: %w", err)
	}
	return store, nil
}

func (s *LocalStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			resource_type TEXT NOT NULL,
			id TEXT NOT NULL,
			payload BLOB,
			version INTEGER NOT NULL DEFAULT 0,
			modified_at DATETIME NOT NULL,
			hash TEXT NOT NULL DEFAULT '',
			sync_status TEXT NOT NULL DEFAULT 'pending',
			deleted BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (resource_type, id)
		);

		CREATE INDEX IF NOT EXISTS idx_records_status ON records(sync_status);

		CREATE TABLE IF NOT EXISTS sync_watermarks (
			resource_type TEXT PRIMARY KEY,
			last_sync_at DATETIME NOT NULL
		);
	`)
	return err
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) Get(ctx context.Context, resourceType, id string) (*syncdomain.StoredRecord, error) {
	var rec syncdomain.StoredRecord
	var payload []byte
	var modifiedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT resource_type, id, payload, version, modified_at, hash, sync_status, deleted
		FROM records
		WHERE resource_type = ? AND id = ?
	`, resourceType, id).Scan(
		&rec.ResourceType,
		&rec.ID,
		&payload,
		&rec.Version,
		&modifiedAt,
		&rec.Hash,
		&rec.SyncStatus,
		&rec.Deleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, resourceType, id)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	rec.Payload = payload
	rec.ModifiedAt, _ = time.Parse(time.RFC3339Nano, modifiedAt)
	return &rec, nil
}

func (s *LocalStore) Put(ctx context.Context, record *syncdomain.StoredRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (resource_type, id, payload, version, modified_at, hash, sync_status, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (resource_type, id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			modified_at = excluded.modified_at,
			hash = excluded.hash,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted
	`,
		record.ResourceType,
		record.ID,
		[]byte(record.Payload),
		record.Version,
		record.ModifiedAt.Format(time.RFC3339Nano),
		record.Hash,
		record.SyncStatus,
		record.Deleted,
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, resourceType, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE resource_type = ? AND id = ?`,
		resourceType, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *LocalStore) UpdateSyncStatus(ctx context.Context, resourceType, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE records SET sync_status = ? WHERE resource_type = ? AND id = ?`,
		status, resourceType, id)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return nil
}

func (s *LocalStore) GetLastSyncTime(ctx context.Context, resourceType string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync_at FROM sync_watermarks WHERE resource_type = ?`,
		resourceType).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No watermark yet: pull everything.
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get watermark: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark: %w", err)
	}
	return t, nil
}

func (s *LocalStore) UpdateLastSyncTime(ctx context.Context, resourceType string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_watermarks (resource_type, last_sync_at)
		VALUES (?, ?)
		ON CONFLICT (resource_type) DO UPDATE SET last_sync_at = excluded.last_sync_at
	`, resourceType, t.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}
	return nil
}

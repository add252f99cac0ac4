package dbftsqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SnapshotStore is a [dbftstore.SnapshotStore] backed by SQLite,
// using the pure-Go driver.
//
// Each key maps to one row; Put upserts, so the store keeps
// exactly one snapshot per round key.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore opens (and if necessary creates)
// a snapshot store at the given path.
// Use ":memory:" for a transient store.
func NewSnapshotStore(ctx context.Context, path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// The database/sql pool interacts poorly with in-memory sqlite,
	// where each new connection sees a fresh empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS consensus_snapshots(
  key BLOB PRIMARY KEY NOT NULL,
  value BLOB NOT NULL
) WITHOUT ROWID`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Put(ctx context.Context, key, value []byte) error {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO consensus_snapshots(key, value) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `
SELECT value FROM consensus_snapshots WHERE key = ?`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return value, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, key []byte) error {
	if _, err := s.db.ExecContext(ctx, `
DELETE FROM consensus_snapshots WHERE key = ?`,
		key,
	); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

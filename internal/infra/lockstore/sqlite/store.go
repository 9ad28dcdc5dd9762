// Package sqlite implements the lock namespace as a claim table in an
// embedded SQLite file. Atomicity of TryAcquire rests on the primary
// key: INSERT OR IGNORE lets exactly one competing writer win.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/melvinwevers/card-annotation/internal/lockstore/core"
)

// Store implements core.Store over a sqlite claim table.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the sqlite lock table at path.
func New(path string) (*Store, error) {
	if path == "" {
		path = "data/locks.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS locks (
		record_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create locks table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Driver returns the lock driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// TryAcquire inserts the claim row unless the record is already claimed.
func (s *Store) TryAcquire(ctx context.Context, recordID string, payload []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO locks(record_id,payload,stored_at) VALUES(?,?,?)`,
		recordID, payload, time.Now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert lock %s: %w", recordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release deletes the claim row; an absent row is a no-op.
func (s *Store) Release(ctx context.Context, recordID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("delete lock %s: %w", recordID, err)
	}
	return nil
}

// List enumerates claim rows in record order.
func (s *Store) List(ctx context.Context) ([]core.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record_id, payload, stored_at FROM locks ORDER BY record_id`)
	if err != nil {
		return nil, fmt.Errorf("select locks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var slots []core.Slot
	for rows.Next() {
		var (
			slot     core.Slot
			storedAt int64
		)
		if err := rows.Scan(&slot.RecordID, &slot.Payload, &storedAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		slot.StoredAt = time.Unix(0, storedAt)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// RemoveIfOlderThan deletes the claim row only when stored before cutoff.
func (s *Store) RemoveIfOlderThan(ctx context.Context, recordID string, cutoff time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM locks WHERE record_id = ? AND stored_at < ?`,
		recordID, cutoff.UnixNano())
	if err != nil {
		return false, fmt.Errorf("delete stale lock %s: %w", recordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

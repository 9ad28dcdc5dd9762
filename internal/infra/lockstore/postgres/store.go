// Package postgres implements the lock namespace as a claim table in a
// shared Postgres database, for deployments where correctors do not
// share a filesystem. INSERT ... ON CONFLICT DO NOTHING makes
// TryAcquire atomic across hosts.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/melvinwevers/card-annotation/internal/lockstore/core"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/card_annotation?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store implements core.Store over a Postgres claim table.
type Store struct {
	db *sql.DB
}

// New opens a Postgres-backed lock namespace using the provided DSN
// (falls back to defaultDSN) and ensures the claim table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS locks (
		record_id TEXT PRIMARY KEY,
		payload BYTEA NOT NULL,
		stored_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure locks table: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Driver returns the lock driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// TryAcquire inserts the claim row unless the record is already claimed.
func (s *Store) TryAcquire(ctx context.Context, recordID string, payload []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locks(record_id,payload,stored_at) VALUES($1,$2,$3) ON CONFLICT (record_id) DO NOTHING`,
		recordID, payload, time.Now().UTC())
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE record_id = $1`, recordID); err != nil {
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
		var slot core.Slot
		if err := rows.Scan(&slot.RecordID, &slot.Payload, &slot.StoredAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// RemoveIfOlderThan deletes the claim row only when stored before cutoff.
func (s *Store) RemoveIfOlderThan(ctx context.Context, recordID string, cutoff time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM locks WHERE record_id = $1 AND stored_at < $2`,
		recordID, cutoff.UTC())
	if err != nil {
		return false, fmt.Errorf("delete stale lock %s: %w", recordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

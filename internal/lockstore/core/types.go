// Package core defines the lock namespace abstractions shared by the
// lockstore backends.
package core

import (
	"context"
	"time"
)

// Driver identifies a concrete lock namespace backend implementation.
type Driver string

const (
	// DriverFilesystem is one lock file per record id under a shared directory.
	DriverFilesystem Driver = "fs"
	// DriverMemory is the in-process implementation used in tests.
	DriverMemory Driver = "memory"
	// DriverSQLite is an embedded sqlite claim table.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is a shared Postgres claim table.
	DriverPostgres Driver = "postgres"
)

// Slot is one occupied lock slot: the record it guards, the metadata
// blob written at acquisition, and the backend's own storage timestamp
// (the freshness fallback when the blob cannot be parsed).
type Slot struct {
	RecordID string
	Payload  []byte
	StoredAt time.Time
}

// Store is the mutual-exclusion primitive the lock manager builds on.
// TryAcquire must be atomic: of two concurrent calls for the same
// record, exactly one observes true. All exclusion semantics above that
// (holder identity, staleness, same-session reclaim) live in the
// manager, keeping backends trivially small.
type Store interface {
	// TryAcquire creates the slot for recordID carrying payload. It
	// returns false, without error, when the slot is already occupied.
	TryAcquire(ctx context.Context, recordID string, payload []byte) (bool, error)
	// Release removes the slot. Removing an absent slot is not an error.
	Release(ctx context.Context, recordID string) error
	// List enumerates every occupied slot.
	List(ctx context.Context) ([]Slot, error)
	// RemoveIfOlderThan removes the slot only if it was stored before
	// cutoff, reporting whether a removal happened. The conditional
	// guards sweeps against racing a fresh re-acquisition.
	RemoveIfOlderThan(ctx context.Context, recordID string, cutoff time.Time) (bool, error)
	Driver() Driver
}

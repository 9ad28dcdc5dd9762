// Package lockstore abstracts the shared mutual-exclusion namespace the
// lock manager arbitrates over: one addressable slot per record id,
// atomically creatable, holding a small opaque metadata blob. The same
// manager logic runs against lock files on a shared host, a SQL table,
// or an in-memory fake for tests.
package lockstore

import (
	"context"
	"fmt"
	"os"

	fsstore "github.com/melvinwevers/card-annotation/internal/infra/lockstore/fs"
	memorystore "github.com/melvinwevers/card-annotation/internal/infra/lockstore/memory"
	postgresstore "github.com/melvinwevers/card-annotation/internal/infra/lockstore/postgres"
	sqlitestore "github.com/melvinwevers/card-annotation/internal/infra/lockstore/sqlite"
	"github.com/melvinwevers/card-annotation/internal/lockstore/core"
)

type (
	// Slot is one occupied lock slot.
	Slot = core.Slot
	// Store is the lock namespace contract.
	Store = core.Store
	// Driver identifies a lock namespace backend.
	Driver = core.Driver
)

const (
	// DriverFilesystem keeps one lock file per record under a shared directory.
	DriverFilesystem = core.DriverFilesystem
	// DriverMemory is the in-process backend used by tests.
	DriverMemory = core.DriverMemory
	// DriverSQLite keeps claims in an embedded sqlite file.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres keeps claims in a shared Postgres table.
	DriverPostgres = core.DriverPostgres
)

// Open selects a lock namespace backend using environment variables.
//
//	CARD_ANNOTATION_LOCK_DRIVER: fs|memory|sqlite|postgres (default fs)
//	CARD_ANNOTATION_LOCK_DIR: lock directory when driver=fs (default data/locks)
//	CARD_ANNOTATION_LOCK_SQLITE_PATH: sqlite file when driver=sqlite
//	CARD_ANNOTATION_LOCK_POSTGRES_DSN: DSN when driver=postgres
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("CARD_ANNOTATION_LOCK_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fsstore.New(os.Getenv("CARD_ANNOTATION_LOCK_DIR"))
	case DriverMemory:
		return memorystore.New(), nil
	case DriverSQLite:
		return sqlitestore.New(os.Getenv("CARD_ANNOTATION_LOCK_SQLITE_PATH"))
	case DriverPostgres:
		return postgresstore.New(ctx, os.Getenv("CARD_ANNOTATION_LOCK_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown lock driver %s", driver)
	}
}

// NewMemory returns an in-memory lock namespace suitable for tests.
func NewMemory() *memorystore.Store { return memorystore.New() }

// NewFilesystem returns a lock namespace over a shared directory.
func NewFilesystem(dir string) (Store, error) { return fsstore.New(dir) }

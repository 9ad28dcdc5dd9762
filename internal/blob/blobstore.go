// Package blob re-exports core blob abstractions for stable internal imports.
package blob

import (
	"github.com/melvinwevers/card-annotation/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// WriteOptions configures a blob write.
	WriteOptions = core.WriteOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrNotFound indicates a read of an absent key.
var ErrNotFound = core.ErrNotFound

// Package core defines the storage abstractions shared by the blob
// backends. The correction tool treats its store as an opaque key-value
// namespace: raw records, corrected records and reference images live
// under fixed prefixes and are addressed by key alone.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs" // local filesystem (default, dev)
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3" // S3 / MinIO compatible
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory" // in-memory (tests)
)

// WriteOptions specifies optional parameters for Write.
type WriteOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // User metadata (small, flat key-value)
}

// Info describes a stored object.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the key-value contract the correction core consumes. Write
// overwrites: corrected records may be saved repeatedly and the locking
// protocol, not the store, guards against concurrent writers.
type Store interface {
	List(ctx context.Context, prefix string) ([]Info, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, opts WriteOptions) (Info, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

// ErrNotFound indicates a read of an absent key.
var ErrNotFound = errors.New("blobstore: object not found")

// NotFound wraps ErrNotFound with the missing key.
func NotFound(key string) error {
	return fmt.Errorf("blob %s: %w", key, ErrNotFound)
}

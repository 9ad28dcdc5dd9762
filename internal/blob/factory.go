package blob

import (
	"context"
	"fmt"
	"os"

	fsstore "github.com/melvinwevers/card-annotation/internal/infra/blob/fs"
	memorystore "github.com/melvinwevers/card-annotation/internal/infra/blob/memory"
	s3store "github.com/melvinwevers/card-annotation/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	CARD_ANNOTATION_BLOB_DRIVER: fs|s3|memory (default fs)
//	CARD_ANNOTATION_BLOB_FS_ROOT: directory root when driver=fs (default ./data/store)
//	(S3 specific variables documented in the s3 backend)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("CARD_ANNOTATION_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("CARD_ANNOTATION_BLOB_FS_ROOT")
		return fsstore.New(root)
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMemory returns an in-memory blob.Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem returns a filesystem blob store rooted at path.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

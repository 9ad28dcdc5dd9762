// Package fs implements the lock namespace as one advisory lock file
// per record id under a shared directory. Atomicity of TryAcquire rests
// on O_EXCL file creation, which every POSIX filesystem (and NFS since
// v3) guarantees for competing processes on the same host or share.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/melvinwevers/card-annotation/internal/lockstore/core"
)

const lockSuffix = ".lock"

// Store implements core.Store over a lock directory.
type Store struct {
	dir string
}

// New returns a lock namespace rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "data/locks"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Driver returns the lock driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// sanitizeID rejects record ids that would escape the lock directory.
func sanitizeID(recordID string) error {
	if strings.TrimSpace(recordID) == "" {
		return fmt.Errorf("empty record id")
	}
	if strings.ContainsAny(recordID, `/\`) || strings.Contains(recordID, "..") {
		return fmt.Errorf("invalid record id %q", recordID)
	}
	return nil
}

func (s *Store) pathFor(recordID string) (string, error) {
	if err := sanitizeID(recordID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, recordID+lockSuffix), nil
}

// TryAcquire creates the lock file exclusively and writes the payload.
func (s *Store) TryAcquire(_ context.Context, recordID string, payload []byte) (bool, error) {
	path, err := s.pathFor(recordID)
	if err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock %s: %w", recordID, err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return false, fmt.Errorf("write lock %s: %w", recordID, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("close lock %s: %w", recordID, err)
	}
	return true, nil
}

// Release removes the lock file; an absent file is a no-op.
func (s *Store) Release(_ context.Context, recordID string) error {
	path, err := s.pathFor(recordID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", recordID, err)
	}
	return nil
}

// List reads every lock file in the directory.
func (s *Store) List(_ context.Context) ([]core.Slot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var slots []core.Slot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), lockSuffix) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		payload, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue // released between readdir and read
		}
		if err != nil {
			return nil, err
		}
		storedAt := time.Time{}
		if st, err := e.Info(); err == nil {
			storedAt = st.ModTime()
		}
		slots = append(slots, core.Slot{
			RecordID: strings.TrimSuffix(e.Name(), lockSuffix),
			Payload:  payload,
			StoredAt: storedAt,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].RecordID < slots[j].RecordID })
	return slots, nil
}

// RemoveIfOlderThan removes the lock file only when its mtime predates cutoff.
func (s *Store) RemoveIfOlderThan(_ context.Context, recordID string, cutoff time.Time) (bool, error) {
	path, err := s.pathFor(recordID)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !st.ModTime().Before(cutoff) {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, nil
}

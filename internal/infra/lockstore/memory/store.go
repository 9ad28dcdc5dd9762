// Package memory implements the lock namespace in process memory.
// Exclusion only spans one process, which is exactly what tests need.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/melvinwevers/card-annotation/internal/lockstore/core"
)

type slot struct {
	payload  []byte
	storedAt time.Time
}

// Store implements core.Store backed by a mutex-guarded map.
type Store struct {
	mu    sync.Mutex
	slots map[string]slot
	now   func() time.Time
}

// New returns an empty in-memory lock namespace.
func New() *Store { return &Store{slots: make(map[string]slot), now: time.Now} }

// SetClock overrides the timestamp source; tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Driver returns the lock driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// TryAcquire creates the slot unless occupied.
func (s *Store) TryAcquire(_ context.Context, recordID string, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[recordID]; ok {
		return false, nil
	}
	b := make([]byte, len(payload))
	copy(b, payload)
	s.slots[recordID] = slot{payload: b, storedAt: s.now()}
	return true, nil
}

// Release removes the slot; absent slots are a no-op.
func (s *Store) Release(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, recordID)
	return nil
}

// List enumerates occupied slots in record order.
func (s *Store) List(_ context.Context) ([]core.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Slot, 0, len(s.slots))
	for id, sl := range s.slots {
		payload := make([]byte, len(sl.payload))
		copy(payload, sl.payload)
		out = append(out, core.Slot{RecordID: id, Payload: payload, StoredAt: sl.storedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

// RemoveIfOlderThan removes the slot when stored before cutoff.
func (s *Store) RemoveIfOlderThan(_ context.Context, recordID string, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[recordID]
	if !ok || !sl.storedAt.Before(cutoff) {
		return false, nil
	}
	delete(s.slots, recordID)
	return true, nil
}

// Package locks arbitrates exclusive edit claims on records. The
// namespace backend only provides an atomically creatable slot per
// record; everything about holders, sessions, and staleness is decided
// here, so fs, sqlite, and postgres backends behave identically.
package locks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/melvinwevers/card-annotation/internal/lockstore"
	"github.com/melvinwevers/card-annotation/pkg/register"
)

// DefaultStaleAfter is how long a claim may sit untouched before a
// sweep considers its holder crashed or walked away.
const DefaultStaleAfter = 30 * time.Minute

// ErrBusy is the sentinel matched by errors.Is for claims held by
// another session.
var ErrBusy = errors.New("record is locked by another session")

// BusyError reports who holds the contested claim and since when.
type BusyError struct {
	RecordID string
	Holder   string
	Since    time.Time
}

func (e *BusyError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("record %s is locked by another session", e.RecordID)
	}
	return fmt.Sprintf("record %s is locked by %s since %s", e.RecordID, e.Holder, e.Since.Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrBusy) match.
func (e *BusyError) Is(target error) bool { return target == ErrBusy }

// claimPayload is the metadata blob stored in the lock slot.
type claimPayload struct {
	User      string    `json:"user"`
	Record    string    `json:"record"`
	LockedAt  time.Time `json:"locked_at"`
	PID       int       `json:"pid"`
	SessionID string    `json:"session_id"`
}

// ClaimEvent captures one arbitration outcome for the audit trail.
type ClaimEvent struct {
	Action     string         `json:"action"` // acquire, reclaim, release, sweep
	RecordID   string         `json:"record_id"`
	Actor      string         `json:"actor"`
	SessionID  string         `json:"session_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ClaimAuditor records claim events.
type ClaimAuditor interface {
	Record(ctx context.Context, event ClaimEvent)
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, ClaimEvent) {}

// Manager arbitrates claims over one lock namespace.
type Manager struct {
	store lockstore.Store
	audit ClaimAuditor
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithAuditor attaches an audit sink for claim events.
func WithAuditor(a ClaimAuditor) Option {
	return func(m *Manager) {
		if a != nil {
			m.audit = a
		}
	}
}

// WithClock overrides the time source; tests only.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a claim manager over the given namespace.
func NewManager(store lockstore.Store, opts ...Option) *Manager {
	m := &Manager{store: store, audit: noopAuditor{}, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire claims recordID for id. If the slot is already held by the
// same session the dangling claim is replaced, so a session that
// crashed mid-edit can pick its record back up. Any other holder, or a
// slot whose metadata cannot be parsed, yields a BusyError.
func (m *Manager) Acquire(ctx context.Context, recordID string, id register.Identity) (register.Claim, error) {
	payload, err := json.Marshal(claimPayload{
		User:      id.User,
		Record:    recordID,
		LockedAt:  m.now().UTC(),
		PID:       id.PID,
		SessionID: id.SessionID,
	})
	if err != nil {
		return register.Claim{}, err
	}
	ok, err := m.store.TryAcquire(ctx, recordID, payload)
	if err != nil {
		return register.Claim{}, err
	}
	if !ok {
		existing, parseErr := m.holder(ctx, recordID)
		if parseErr == nil && existing.SessionID != "" && existing.SessionID == id.SessionID {
			// Same session reclaiming its own dangling claim.
			if err := m.store.Release(ctx, recordID); err != nil {
				return register.Claim{}, err
			}
			ok, err = m.store.TryAcquire(ctx, recordID, payload)
			if err != nil {
				return register.Claim{}, err
			}
			if ok {
				m.audit.Record(ctx, ClaimEvent{
					Action: "reclaim", RecordID: recordID, Actor: id.User,
					SessionID: id.SessionID, OccurredAt: m.now().UTC(),
				})
				return m.claimFor(recordID, id), nil
			}
		}
		busy := &BusyError{RecordID: recordID}
		if parseErr == nil {
			busy.Holder = existing.User
			busy.Since = existing.LockedAt
		}
		return register.Claim{}, busy
	}
	m.audit.Record(ctx, ClaimEvent{
		Action: "acquire", RecordID: recordID, Actor: id.User,
		SessionID: id.SessionID, OccurredAt: m.now().UTC(),
	})
	return m.claimFor(recordID, id), nil
}

func (m *Manager) claimFor(recordID string, id register.Identity) register.Claim {
	return register.Claim{
		RecordID:   recordID,
		Holder:     id.User,
		SessionID:  id.SessionID,
		PID:        id.PID,
		AcquiredAt: m.now().UTC(),
	}
}

// holder reads and parses the current slot metadata for recordID.
func (m *Manager) holder(ctx context.Context, recordID string) (claimPayload, error) {
	slots, err := m.store.List(ctx)
	if err != nil {
		return claimPayload{}, err
	}
	for _, slot := range slots {
		if slot.RecordID != recordID {
			continue
		}
		var p claimPayload
		if err := json.Unmarshal(slot.Payload, &p); err != nil {
			return claimPayload{}, fmt.Errorf("corrupt claim metadata for %s: %w", recordID, err)
		}
		return p, nil
	}
	return claimPayload{}, fmt.Errorf("no claim for %s", recordID)
}

// Release gives up the claim on recordID. Releasing an unclaimed record
// is a no-op, so teardown paths can call it unconditionally.
func (m *Manager) Release(ctx context.Context, recordID string, id register.Identity) error {
	if err := m.store.Release(ctx, recordID); err != nil {
		return err
	}
	m.audit.Record(ctx, ClaimEvent{
		Action: "release", RecordID: recordID, Actor: id.User,
		SessionID: id.SessionID, OccurredAt: m.now().UTC(),
	})
	return nil
}

// ListLiveClaims enumerates current claims for operational visibility.
// Slots whose metadata cannot be parsed are reported as corrupted with
// the backend's storage time standing in for the acquisition time.
func (m *Manager) ListLiveClaims(ctx context.Context) ([]register.ClaimInfo, error) {
	slots, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	infos := make([]register.ClaimInfo, 0, len(slots))
	for _, slot := range slots {
		info := register.ClaimInfo{}
		var p claimPayload
		if err := json.Unmarshal(slot.Payload, &p); err != nil || p.LockedAt.IsZero() {
			info.Corrupted = true
			info.RecordID = slot.RecordID
			info.AcquiredAt = slot.StoredAt
		} else {
			info.Claim = register.Claim{
				RecordID:   slot.RecordID,
				Holder:     p.User,
				SessionID:  p.SessionID,
				PID:        p.PID,
				AcquiredAt: p.LockedAt,
			}
		}
		if !info.AcquiredAt.IsZero() {
			info.Age = now.Sub(info.AcquiredAt)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SweepStale removes claims older than olderThan, including claims with
// unparseable metadata once the backend's own timestamp shows them over
// age. Removal goes through the backend's conditional delete so a sweep
// never races a fresh re-acquisition of the same record.
func (m *Manager) SweepStale(ctx context.Context, olderThan time.Duration) ([]register.StaleClaim, error) {
	if olderThan <= 0 {
		olderThan = DefaultStaleAfter
	}
	infos, err := m.ListLiveClaims(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	cutoff := now.Add(-olderThan)
	var swept []register.StaleClaim
	for _, info := range infos {
		if !info.AcquiredAt.IsZero() && !info.AcquiredAt.Before(cutoff) {
			continue
		}
		removed, err := m.store.RemoveIfOlderThan(ctx, info.RecordID, cutoff)
		if err != nil {
			return swept, err
		}
		if !removed {
			continue
		}
		stale := register.StaleClaim{RecordID: info.RecordID, Holder: info.Holder, Age: info.Age}
		swept = append(swept, stale)
		m.audit.Record(ctx, ClaimEvent{
			Action: "sweep", RecordID: info.RecordID, Actor: info.Holder,
			Metadata:   map[string]any{"age": info.Age.String(), "corrupted": info.Corrupted},
			OccurredAt: now.UTC(),
		})
	}
	return swept, nil
}

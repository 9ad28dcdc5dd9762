package memory

import (
	"context"
	"testing"
	"time"
)

func TestTryAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := New()
	ok, err := s.TryAcquire(ctx, "card_0001.json", []byte("a"))
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	ok, err = s.TryAcquire(ctx, "card_0001.json", []byte("b"))
	if err != nil || ok {
		t.Fatalf("second acquire = %v, %v", ok, err)
	}
	slots, err := s.List(ctx)
	if err != nil || len(slots) != 1 {
		t.Fatalf("list = %v, %v", slots, err)
	}
	if string(slots[0].Payload) != "a" {
		t.Fatalf("payload = %s, winner's payload should survive", slots[0].Payload)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.TryAcquire(ctx, "r", []byte("x")); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.Release(ctx, "r"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := s.Release(ctx, "r"); err != nil {
		t.Fatalf("second release: %v", err)
	}
	ok, err := s.TryAcquire(ctx, "r", []byte("y"))
	if err != nil || !ok {
		t.Fatalf("reacquire = %v, %v", ok, err)
	}
}

func TestRemoveIfOlderThan(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	if _, err := s.TryAcquire(ctx, "r", []byte("x")); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	removed, err := s.RemoveIfOlderThan(ctx, "r", now.Add(-time.Minute))
	if err != nil || removed {
		t.Fatalf("fresh slot removed = %v, %v", removed, err)
	}
	removed, err = s.RemoveIfOlderThan(ctx, "r", now.Add(time.Minute))
	if err != nil || !removed {
		t.Fatalf("stale slot kept = %v, %v", removed, err)
	}
	removed, err = s.RemoveIfOlderThan(ctx, "r", now.Add(time.Minute))
	if err != nil || removed {
		t.Fatalf("absent slot removed = %v, %v", removed, err)
	}
}

func TestListSorted(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.TryAcquire(ctx, id, nil); err != nil {
			t.Fatalf("acquire %s: %v", id, err)
		}
	}
	slots, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 3 || slots[0].RecordID != "a" || slots[2].RecordID != "c" {
		t.Fatalf("list = %+v", slots)
	}
}

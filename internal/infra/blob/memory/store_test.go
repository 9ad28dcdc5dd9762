package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/melvinwevers/card-annotation/internal/blob/core"
)

func TestWriteReadOverwrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SetClock(func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) })

	info, err := s.Write(ctx, "jsons/a.json", []byte(`{"x":1}`), core.WriteOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if info.Size != 7 || info.ContentType != "application/json" || info.ETag == "" {
		t.Fatalf("info = %+v", info)
	}

	got, err := s.Read(ctx, "jsons/a.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"x":1}` {
		t.Fatalf("read = %s", got)
	}

	if _, err := s.Write(ctx, "jsons/a.json", []byte(`{"x":2}`), core.WriteOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Read(ctx, "jsons/a.json")
	if string(got) != `{"x":2}` {
		t.Fatalf("after overwrite = %s", got)
	}
}

func TestReadMissing(t *testing.T) {
	s := New()
	_, err := s.Read(context.Background(), "nope")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, key := range []string{"jsons/b.json", "jsons/a.json", "corrected/a.json"} {
		if _, err := s.Write(ctx, key, []byte("x"), core.WriteOptions{}); err != nil {
			t.Fatalf("write %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "jsons/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "jsons/a.json" || infos[1].Key != "jsons/b.json" {
		t.Fatalf("list = %+v", infos)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Write(ctx, "k", []byte("x"), core.WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	existed, err := s.Delete(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("delete = %v, %v", existed, err)
	}
	existed, err = s.Delete(ctx, "k")
	if err != nil || existed {
		t.Fatalf("second delete = %v, %v", existed, err)
	}
	ok, _ := s.Exists(ctx, "k")
	if ok {
		t.Fatalf("key should be gone")
	}
}

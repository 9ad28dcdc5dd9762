package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "save", true, 20*time.Millisecond)
	rec.Observe(ctx, "save", true, 30*time.Millisecond)
	rec.Observe(ctx, "save", false, 10*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.DurationsMS["save"]; got != 60 {
		t.Fatalf("durations = %v", got)
	}
	if snap.Results["save"]["success"] != 2 || snap.Results["save"]["error"] != 1 {
		t.Fatalf("results = %v", snap.Results)
	}
	if rec.Name() == "" {
		t.Fatalf("generated name empty")
	}
}

func TestExpvarMetricsRecorderUniqueNames(t *testing.T) {
	a := NewExpvarMetricsRecorder("")
	b := NewExpvarMetricsRecorder("")
	if a.Name() == b.Name() {
		t.Fatalf("names collide: %s", a.Name())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "open", true, 5*time.Millisecond)
	rec.Observe(ctx, "open", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	if !found["card_annotation_session_operation_duration_seconds"] {
		t.Fatalf("duration metric missing: %v", found)
	}
	if !found["card_annotation_session_operation_results_total"] {
		t.Fatalf("results metric missing: %v", found)
	}

	// Registering twice must surface the registry's duplicate error.
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
}

package core

import (
	"bytes"
	"context"
	"testing"
	"time"
)

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

func TestServiceObservesOperations(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	tracer := NewJSONTracer(&bytes.Buffer{})
	audit := NewMemoryAuditLog()
	svc := newTestService(
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithAuditSink(audit),
	)
	ctx := context.Background()

	task := mustCreateTask(t, svc, Task{OwnerID: "u1", Title: "observed"})
	if _, _, err := svc.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, _, err := svc.UpdateGoalProgress(ctx, "missing", 10); err == nil {
		t.Fatal("expected failure on missing goal")
	}

	if !metrics.has("create_task", true) || !metrics.has("complete_task", true) {
		t.Fatalf("missing success observations: %+v", metrics.calls)
	}
	if !metrics.has("update_goal_progress", false) {
		t.Fatalf("missing failure observation: %+v", metrics.calls)
	}

	var sawFailureSpan bool
	for _, span := range tracer.Entries() {
		if span.Operation == "update_goal_progress" && span.Status == "error" {
			sawFailureSpan = true
		}
	}
	if !sawFailureSpan {
		t.Fatalf("expected failed span, got %+v", tracer.Entries())
	}

	var sawOK, sawError bool
	for _, entry := range audit.Entries() {
		if entry.Operation == "create_task" && entry.Status == AuditOK && entry.EntityID == task.ID {
			sawOK = true
		}
		if entry.Operation == "update_goal_progress" && entry.Status == AuditError {
			sawError = true
		}
	}
	if !sawOK || !sawError {
		t.Fatalf("audit trail incomplete: %+v", audit.Entries())
	}
}

func TestBlockedOperationAuditsAsBlocked(t *testing.T) {
	audit := NewMemoryAuditLog()
	svc := newTestService(WithAuditSink(audit))

	if _, _, err := svc.RequestConnection(context.Background(), "u1", "u1", ""); err == nil {
		t.Fatal("expected self connection to fail")
	}
	var sawBlocked bool
	for _, entry := range audit.Entries() {
		if entry.Operation == "request_connection" && entry.Status == AuditBlocked {
			sawBlocked = true
		}
	}
	if !sawBlocked {
		t.Fatalf("expected blocked audit entry, got %+v", audit.Entries())
	}
}

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "create_task", true, 5*time.Millisecond)
	rec.Observe(ctx, "create_task", true, 3*time.Millisecond)
	rec.Observe(ctx, "create_task", false, time.Millisecond)

	snap := rec.Snapshot()
	if snap.Results["create_task"]["success"] != 2 {
		t.Fatalf("unexpected success count: %+v", snap.Results)
	}
	if snap.Results["create_task"]["error"] != 1 {
		t.Fatalf("unexpected error count: %+v", snap.Results)
	}
	if snap.DurationsMS["create_task"] < 8 {
		t.Fatalf("unexpected duration total: %+v", snap.DurationsMS)
	}
}

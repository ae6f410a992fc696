package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsAreForwarded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	Error("interview.evaluation.failed", map[string]any{
		"answer_id": "a-1",
		"error":     errors.New("boom"),
	})

	entries := logs.FilterMessage("interview.evaluation.failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["answer_id"] != "a-1" {
		t.Fatalf("unexpected answer_id: %v", ctx["answer_id"])
	}
	if ctx["error"] != "boom" {
		t.Fatalf("expected error string, got %v", ctx["error"])
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[0].Level)
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	prev := L()
	t.Cleanup(func() { SetLogger(prev) })

	if err := Init("dev", "not-a-level"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !L().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected fallback to info level")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if RequestID(ctx) != "req-1" {
		t.Fatalf("request id not stored")
	}
	detached := Detach(ctx)
	if RequestID(detached) != "req-1" || detached.Done() != nil {
		t.Fatalf("detached context must keep the id and drop cancellation")
	}
	if RequestID(context.Background()) != "" {
		t.Fatalf("expected empty id")
	}
}

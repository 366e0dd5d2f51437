package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Info("case.status", map[string]any{"case_id": "c1", "status": "processing"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "case.status" || entry.Level != zapcore.InfoLevel {
		t.Fatalf("unexpected entry %+v", entry.Entry)
	}
	ctx := entry.ContextMap()
	if ctx["case_id"] != "c1" || ctx["status"] != "processing" {
		t.Fatalf("unexpected fields %#v", ctx)
	}
}

func TestErrorRedactsSecretsAndFlattensErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Error("provider.failed", map[string]any{
		"api_key": "sk-123",
		"err":     errors.New("boom"),
	})

	entries := logs.FilterMessage("provider.failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["api_key"] != "[REDACTED]" {
		t.Fatalf("expected redacted api_key, got %v", ctx["api_key"])
	}
	if ctx["err"] != "boom" {
		t.Fatalf("expected err string, got %v", ctx["err"])
	}
}

func TestSetLoggerNilUsesNop(t *testing.T) {
	restore := SetLogger(nil)
	defer restore()
	Warn("ignored", nil)
}

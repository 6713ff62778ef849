package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, buf, "iterpipe")
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "debug")
	l.Info("run completed", Fields(FieldCount, 3, FieldForward, "success"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "run completed" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if entry[FieldForward] != "success" {
		t.Errorf("expected forward field, got %v", entry[FieldForward])
	}
	if entry["service"] != "iterpipe" {
		t.Errorf("expected service tag, got %v", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Info("still logs at info")
	if !strings.Contains(buf.String(), "still logs") {
		t.Errorf("expected fallback to info level, got %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cl := jsonLogger(&buf, "info").WithComponent(ComponentPipe)
	cl.Info("hello")
	if !strings.Contains(buf.String(), `"component":"pipe"`) {
		t.Errorf("expected component field, got %q", buf.String())
	}
	if cl.service != "iterpipe" {
		t.Errorf("service should be preserved, got %q", cl.service)
	}
}

func TestWithContext_RunID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRunID(context.Background(), "run-42")
	jsonLogger(&buf, "info").WithContext(ctx).Info("step")
	if !strings.Contains(buf.String(), `"run_id":"run-42"`) {
		t.Errorf("expected run_id field, got %q", buf.String())
	}
	if id, ok := RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Errorf("expected run-42, got %q (ok=%v)", id, ok)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded", Fields("k", "v"))
}

func TestFields_OddCount(t *testing.T) {
	m := Fields("a", 1, "dangling")
	if len(m) != 1 || m["a"] != 1 {
		t.Errorf("unexpected fields %v", m)
	}
}

func TestRegistryGet(t *testing.T) {
	var buf bytes.Buffer
	Register("custom", jsonLogger(&buf, "info"))
	Get("custom").Info("via registry")
	if !strings.Contains(buf.String(), "via registry") {
		t.Errorf("expected registered logger to be used, got %q", buf.String())
	}
	if Get("unregistered") == nil {
		t.Error("expected fallback logger")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	cfg.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown format")
	}
}

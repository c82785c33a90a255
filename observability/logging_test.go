package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(level string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(LogConfig{Level: level, Format: "json", Output: &buf}), &buf
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	return record
}

func TestLoggerRedactsSecrets(t *testing.T) {
	logger, buf := newBufferLogger("info")
	key := "sk-proj-" + strings.Repeat("a", 40)

	logger.Info(context.Background(), "using key "+key, "error", errors.New("auth failed for "+key))

	out := buf.String()
	if strings.Contains(out, key) {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Errorf("expected redaction marker in %s", out)
	}
}

func TestLoggerRedactsSensitiveMapKeys(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.Info(context.Background(), "provider", "config", map[string]string{"api_key": "short", "name": "groq"})

	record := decodeRecord(t, buf)
	cfg, ok := record["config"].(map[string]any)
	if !ok {
		t.Fatalf("expected config map, got %T", record["config"])
	}
	if cfg["api_key"] != redacted {
		t.Errorf("expected api_key redacted, got %v", cfg["api_key"])
	}
	if cfg["name"] != "groq" {
		t.Errorf("expected name preserved, got %v", cfg["name"])
	}
}

func TestLoggerContextFields(t *testing.T) {
	logger, buf := newBufferLogger("debug")
	ctx := WithSessionID(WithRunID(context.Background(), "run-1"), "sess-9")

	logger.Debug(ctx, "step", "number", 3)

	record := decodeRecord(t, buf)
	if record["run_id"] != "run-1" || record["session_id"] != "sess-9" {
		t.Errorf("missing context fields: %v", record)
	}
	if record["number"] != float64(3) {
		t.Errorf("expected number 3, got %v", record["number"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger("warn")
	logger.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %s", buf.String())
	}
	logger.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected warn record")
	}
}

func TestLoggerWith(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.With("component", "dispatcher").Info(context.Background(), "ready")

	record := decodeRecord(t, buf)
	if record["component"] != "dispatcher" {
		t.Errorf("expected component field, got %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ValidateLevel("bogus") == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info(context.Background(), "nothing")
}

package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return FromZap(zap.New(core)), logs
}

func TestNewLogger_WritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "studio.log")
	warn := zapcore.WarnLevel

	logger, err := NewLogger(Options{
		Level:        zapcore.InfoLevel,
		ConsoleLevel: &warn,
		FilePath:     logPath,
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("history loaded", zap.Int("count", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"history loaded"`) {
		t.Errorf("log file missing entry: %s", data)
	}
	if !strings.Contains(string(data), `"count":3`) {
		t.Errorf("log file missing field: %s", data)
	}
}

func TestNewLogger_NoFile(t *testing.T) {
	logger, err := NewLogger(Options{Level: zapcore.InfoLevel})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Debug("dropped")
	logger.Info("kept")
}

func TestLogger_RedactsFields(t *testing.T) {
	logger, logs := newObserved(zapcore.DebugLevel)

	key := "AIza" + strings.Repeat("x", 35)
	logger.Info("calling model",
		zap.String("GEMINI_API_KEY", "anything"),
		zap.String("detail", "using key "+key),
		zap.Error(errors.New("request failed for key "+key)),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["GEMINI_API_KEY"] != RedactedPlaceholder {
		t.Errorf("GEMINI_API_KEY = %v", ctx["GEMINI_API_KEY"])
	}
	if strings.Contains(ctx["detail"].(string), key) {
		t.Errorf("detail not redacted: %v", ctx["detail"])
	}
	if strings.Contains(ctx["error"].(string), key) {
		t.Errorf("error not redacted: %v", ctx["error"])
	}
}

func TestLogger_RedactsKeysAndValues(t *testing.T) {
	logger, logs := newObserved(zapcore.DebugLevel)

	logger.Warnw("selected credential", "elevated_key", "secret-value", "slot", "lulu_history_v2")

	ctx := logs.All()[0].ContextMap()
	if ctx["elevated_key"] != RedactedPlaceholder {
		t.Errorf("elevated_key = %v", ctx["elevated_key"])
	}
	if ctx["slot"] != "lulu_history_v2" {
		t.Errorf("slot = %v", ctx["slot"])
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	child := logger.Named("studio").With(zap.String("correlation_id", "abc12345"))
	child.Info("generation started")
	child.Debug("below level")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].LoggerName != "studio" {
		t.Errorf("LoggerName = %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["correlation_id"] != "abc12345" {
		t.Errorf("correlation_id missing: %v", entries[0].ContextMap())
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error("ignored")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
	var nilLogger *Logger
	if err := nilLogger.Sync(); err != nil {
		t.Errorf("nil Sync() error = %v", err)
	}
}

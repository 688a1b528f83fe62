package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lulu_studio/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCleanupTempFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"lulu-upscale-1.png", "lulu-upscale-2.png", "keep.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	core, logs := observer.New(zap.InfoLevel)
	fn := CleanupTempFiles(logging.FromZap(zap.New(core)), dir, UpscaleTempPattern)
	if err := fn(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	left, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(left) != 1 || filepath.Base(left[0]) != "keep.png" {
		t.Errorf("remaining files = %v", left)
	}

	entries := logs.FilterMessage("Removed temporary files").All()
	if len(entries) != 1 {
		t.Fatalf("expected one summary log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["removed"]; got != int64(2) {
		t.Errorf("removed = %v, want 2", got)
	}
}

func TestCleanupTempFiles_NothingToDo(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	fn := CleanupTempFiles(logging.FromZap(zap.New(core)), t.TempDir(), UpscaleTempPattern)
	if err := fn(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no logs, got %d", logs.Len())
	}
}

func TestCleanupTempFiles_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lulu-upscale-1.png")
	os.WriteFile(path, []byte("x"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := CleanupTempFiles(nil, dir, UpscaleTempPattern)(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("cancelled cleanup should leave files in place")
	}
}

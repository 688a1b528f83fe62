package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDataDirectory(t *testing.T) {
	dir := GetDataDirectory()
	if dir == "" {
		t.Fatal("GetDataDirectory() returned empty path")
	}
	base := strings.ToLower(filepath.Base(dir))
	if !strings.Contains(base, "lulustudio") {
		t.Errorf("GetDataDirectory() = %q, want a lulustudio directory", dir)
	}
}

func TestEnsureDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if err := EnsureDirectory(dir); err != nil {
		t.Fatalf("EnsureDirectory() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	if err := EnsureDirectory(dir); err != nil {
		t.Errorf("EnsureDirectory() second call error = %v", err)
	}
}

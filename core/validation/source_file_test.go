package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProbeSourceFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "studio.yaml")
	if err := os.WriteFile(file, []byte("port: 3000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		want    SourceState
		wantErr string
	}{
		{"existing file", file, SourcePresent, ""},
		{"missing file", filepath.Join(dir, "missing.yaml"), SourceMissing, ""},
		{"empty path", "", SourceMissing, ""},
		{"directory", dir, SourceUnreadable, "directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProbeSourceFile(tt.path)
			if got != tt.want {
				t.Errorf("ProbeSourceFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

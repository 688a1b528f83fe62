package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileSlot_ReadMissing(t *testing.T) {
	slot, err := NewFileSlot("lulu_history_v2", filepath.Join(t.TempDir(), "data", "lulu_history_v2.json"))
	if err != nil {
		t.Fatalf("NewFileSlot() error = %v", err)
	}
	data, err := slot.Read(context.Background())
	if err != nil || data != nil {
		t.Errorf("Read() = %q, %v; want nil, nil", data, err)
	}
}

func TestFileSlot_WriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "h.json")
	slot, err := NewFileSlot("h", path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := slot.Write(ctx, []byte(`[1]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := slot.Write(ctx, []byte(`[2]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := slot.Read(ctx)
	if err != nil || string(data) != "[2]" {
		t.Errorf("Read() = %q, %v", data, err)
	}
	if slot.Path() != path || slot.Name() != "h" {
		t.Errorf("Path/Name = %q %q", slot.Path(), slot.Name())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileSlot_BacksStore(t *testing.T) {
	ctx := context.Background()
	slot, err := NewFileSlot("h", filepath.Join(t.TempDir(), "h.json"))
	if err != nil {
		t.Fatal(err)
	}
	store := Open(ctx, slot)
	store.InsertMostRecent(ctx, record(t, "1", "a cozy cabin"))

	reopened := Open(ctx, slot)
	rec, ok := reopened.Get("1")
	if !ok || rec.Prompt != "a cozy cabin" {
		t.Errorf("Get(1) = %+v, %v", rec, ok)
	}
}

func TestFileSlot_UpdatedAt(t *testing.T) {
	ctx := context.Background()
	slot, err := NewFileSlot("h", filepath.Join(t.TempDir(), "h.json"))
	if err != nil {
		t.Fatal(err)
	}
	store := Open(ctx, slot)
	if _, ok := store.SavedAt(ctx); ok {
		t.Error("SavedAt() ok before the first write")
	}

	stamp := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := slot.Write(ctx, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(slot.Path(), stamp, stamp); err != nil {
		t.Fatal(err)
	}
	if saved, ok := store.SavedAt(ctx); !ok || !saved.Equal(stamp) {
		t.Errorf("SavedAt() = %v, %v; want %v", saved, ok, stamp)
	}

	if _, ok := Open(ctx, NewMemorySlot("m", "")).SavedAt(ctx); ok {
		t.Error("SavedAt() ok for a slot without timestamps")
	}
}

func TestMemorySlot(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot("m", `[]`)
	if slot.Contents() != "[]" {
		t.Errorf("Contents() = %q", slot.Contents())
	}
	if err := slot.Write(ctx, []byte("x")); err != nil {
		t.Fatal(err)
	}
	slot.FailWrites = true
	if err := slot.Write(ctx, []byte("y")); err == nil {
		t.Error("Write() error = nil with FailWrites")
	}
	if slot.Contents() != "x" || slot.Writes() != 1 {
		t.Errorf("Contents() = %q, Writes() = %d", slot.Contents(), slot.Writes())
	}
}

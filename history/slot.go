// Package history keeps the ordered, persisted list of generated images.
package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Slot is a named, device-local storage cell holding one serialized document.
type Slot interface {
	// Name identifies the slot (e.g. "lulu_history_v2").
	Name() string
	// Read returns the stored document, or nil and no error when the slot is empty.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored document.
	Write(ctx context.Context, data []byte) error
}

// Stamped is implemented by slots that know when they were last written.
// UpdatedAt returns the zero time for a slot that was never written.
type Stamped interface {
	UpdatedAt(ctx context.Context) (time.Time, error)
}

// FileSlot stores the document in a JSON file.
type FileSlot struct {
	name string
	path string
	mu   sync.Mutex
}

// NewFileSlot creates the parent directory of path and returns a slot backed by it.
func NewFileSlot(name, path string) (*FileSlot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: ensure slot dir: %w", err)
	}
	return &FileSlot{name: name, path: path}, nil
}

// Name implements Slot.
func (s *FileSlot) Name() string { return s.name }

// Path returns the backing file.
func (s *FileSlot) Path() string { return s.path }

// Read implements Slot.
func (s *FileSlot) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read slot %s: %w", s.name, err)
	}
	return data, nil
}

// Write implements Slot. The file is replaced atomically so a crash
// mid-write never leaves a truncated history behind.
func (s *FileSlot) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("history: write slot %s: %w", s.name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write slot %s: %w", s.name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: write slot %s: %w", s.name, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: write slot %s: %w", s.name, err)
	}
	return nil
}

// UpdatedAt implements Stamped using the file's modification time.
func (s *FileSlot) UpdatedAt(ctx context.Context) (time.Time, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("history: stat slot %s: %w", s.name, err)
	}
	return info.ModTime(), nil
}

// MemorySlot keeps the document in memory. Used by tests and ephemeral runs.
type MemorySlot struct {
	name string
	mu   sync.Mutex
	data []byte
	// FailWrites makes Write return an error, simulating a full or read-only store.
	FailWrites bool
	writes     int
}

// NewMemorySlot returns an empty in-memory slot, optionally seeded with a document.
func NewMemorySlot(name string, seed string) *MemorySlot {
	s := &MemorySlot{name: name}
	if seed != "" {
		s.data = []byte(seed)
	}
	return s
}

// Name implements Slot.
func (s *MemorySlot) Name() string { return s.name }

// Read implements Slot.
func (s *MemorySlot) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

// Write implements Slot.
func (s *MemorySlot) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errors.New("history: memory slot is read-only")
	}
	s.data = append([]byte(nil), data...)
	s.writes++
	return nil
}

// Writes returns how many successful writes the slot has seen.
func (s *MemorySlot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Contents returns the current document as a string.
func (s *MemorySlot) Contents() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(string(s.data))
}

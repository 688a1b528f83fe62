package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lulu_studio/core"
)

// Cleanup priorities used by the server. Lower runs first. The HTTP
// server also disconnects WebSocket clients.
const (
	PriorityHTTP      = 10
	PriorityHistory   = 25
	PriorityDatabase  = 30
	PriorityTempFiles = 40
	PriorityLogger    = 90
)

type cleanupEntry struct {
	name     string
	priority int
	seq      int
	fn       core.ShutdownFunc
}

// ShutdownRegistry holds cleanup functions ordered by priority. Entries
// with equal priority run in registration order.
type ShutdownRegistry struct {
	mu      sync.Mutex
	entries []cleanupEntry
	closed  bool
}

// NewShutdownRegistry returns an empty registry.
func NewShutdownRegistry() *ShutdownRegistry {
	return &ShutdownRegistry{}
}

// Register adds fn. Registration after Shutdown is ignored.
func (r *ShutdownRegistry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.entries = append(r.entries, cleanupEntry{name: name, priority: priority, seq: len(r.entries), fn: fn})
}

func (r *ShutdownRegistry) ordered() []cleanupEntry {
	sorted := make([]cleanupEntry, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].priority != sorted[j].priority {
			return sorted[i].priority < sorted[j].priority
		}
		return sorted[i].seq < sorted[j].seq
	})
	return sorted
}

// Shutdown runs every cleanup once, in order, and returns the failures
// wrapped with the cleanup's name. Later calls return nil.
func (r *ShutdownRegistry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sorted := r.ordered()
	r.mu.Unlock()

	var errs []error
	for _, entry := range sorted {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown: %s: %w", entry.name, err))
		}
	}
	return errs
}

// Names lists registered cleanups in execution order.
func (r *ShutdownRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := r.ordered()
	names := make([]string, len(sorted))
	for i, entry := range sorted {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered cleanups.
func (r *ShutdownRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Package shutdown coordinates graceful exit of the studio server: in-flight
// generations drain, then registered cleanups run in priority order.
package shutdown

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTrackerClosed is returned when an operation starts after shutdown began.
var ErrTrackerClosed = errors.New("shutdown: operation tracker is closed")

// ErrWaitTimeout is returned when Wait gives up before all operations finish.
var ErrWaitTimeout = errors.New("shutdown: operations did not complete in time")

// OperationTracker counts named in-flight operations so shutdown can wait
// for them. Once closed it rejects new operations.
type OperationTracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]int
	count  int64
	closed bool
}

// NewOperationTracker returns an open tracker.
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{active: make(map[string]int)}
}

// Start registers an operation. It returns false when the tracker is closed;
// otherwise the caller must call Done with the same name.
func (t *OperationTracker) Start(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	t.active[name]++
	t.count++
	return true
}

// Done marks one operation with the given name as finished.
func (t *OperationTracker) Done(name string) {
	t.mu.Lock()
	if n := t.active[name]; n <= 1 {
		delete(t.active, name)
	} else {
		t.active[name] = n - 1
	}
	t.count--
	t.mu.Unlock()
	t.wg.Done()
}

// Wait blocks until every tracked operation is done or the timeout passes.
func (t *OperationTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Close stops new operations from starting. Running ones continue.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// ActiveCount returns the number of running operations.
func (t *OperationTracker) ActiveCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// ActiveNames returns the distinct names of running operations, sorted.
func (t *OperationTracker) ActiveNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.active))
	for name := range t.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

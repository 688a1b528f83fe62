package shutdown

import "sync"

// SignalCounter counts interrupt signals and calls onForce once the count
// reaches forceAfter. The first signal starts a graceful shutdown; a second
// one usually means the user wants out now.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	forceAfter int
	forced     bool
	onForce    func()
}

// NewSignalCounter returns a counter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Increment records a signal and returns the new count. onForce runs at
// most once, outside the lock.
func (s *SignalCounter) Increment() int {
	s.mu.Lock()
	s.count++
	n := s.count
	var force func()
	if n >= s.forceAfter && !s.forced && s.onForce != nil {
		s.forced = true
		force = s.onForce
	}
	s.mu.Unlock()

	if force != nil {
		force()
	}
	return n
}

// Count returns the number of signals seen.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

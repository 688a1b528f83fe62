package db

import (
	"context"
	"sync"
	"time"
)

// DefaultChannelCapacity is the default buffer size for pending writes.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout bounds how long Stop waits for pending writes.
const DefaultDrainTimeout = 10 * time.Second

// AsyncWriter queues values and hands them to a handler on a background
// goroutine, so callers on the request path never wait for SQLite.
// When the queue is full, Write drops the value and reports false.
type AsyncWriter[T any] struct {
	queue   chan T
	handler func(T) error
	onError func(T, error)
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	timeout time.Duration
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	ChannelCapacity int
	DrainTimeout    time.Duration
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// NewAsyncWriter creates a writer. onError may be nil.
func NewAsyncWriter[T any](handler func(T) error, onError func(T, error), config AsyncWriterConfig) *AsyncWriter[T] {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter[T]{
		queue:   make(chan T, config.ChannelCapacity),
		handler: handler,
		onError: onError,
		ctx:     ctx,
		cancel:  cancel,
		timeout: config.DrainTimeout,
	}
}

// Start launches the background goroutine. Calling Start twice is a no-op.
func (w *AsyncWriter[T]) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *AsyncWriter[T]) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case v := <-w.queue:
			w.handle(v)
		}
	}
}

func (w *AsyncWriter[T]) drain() {
	for {
		select {
		case v := <-w.queue:
			w.handle(v)
		default:
			return
		}
	}
}

func (w *AsyncWriter[T]) handle(v T) {
	if err := w.handler(v); err != nil && w.onError != nil {
		w.onError(v, err)
	}
}

// Write queues v without blocking. It returns false when the queue is full.
func (w *AsyncWriter[T]) Write(v T) bool {
	select {
	case w.queue <- v:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued values.
func (w *AsyncWriter[T]) Pending() int {
	return len(w.queue)
}

// Stop processes everything already queued, then stops the goroutine.
// It returns false if draining exceeded the drain timeout.
func (w *AsyncWriter[T]) Stop() bool {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(w.timeout):
		return false
	}
}

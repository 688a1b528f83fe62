package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lulu_studio/core"
	"lulu_studio/logging"

	"go.uber.org/zap"
)

// DefaultTimeout bounds how long Shutdown waits for generations and cleanups.
const DefaultTimeout = 60 * time.Second

// Manager ties together the operation tracker, the cleanup registry and
// signal handling for `lulu serve`.
//
//	m := shutdown.NewManager(logger)
//	m.Register("http", shutdown.PriorityHTTP, server.Shutdown)
//	m.Start()
//	m.Wait()
//	err := m.Shutdown()
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration
	exit    func(int)

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *ShutdownRegistry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithExit replaces os.Exit for the forced exit on a second signal.
func WithExit(exit func(int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager returns a manager. A nil logger discards output.
func NewManager(logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  DefaultTimeout,
		exit:     os.Exit,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewShutdownRegistry(),
		sigChan:  make(chan os.Signal, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Second signal received, exiting immediately",
			zap.Strings("pending", m.tracker.ActiveNames()),
		)
		m.exit(core.ExitCodeSIGINT)
	})
	return m
}

// Context is cancelled once shutdown is requested.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup. Lower priorities run first; see the Priority constants.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown handler",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start listens for SIGINT and SIGTERM. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			if m.signals.Increment() == 1 {
				m.logger.Info("Shutdown signal received",
					zap.String("signal", sig.String()),
					zap.Int64("in_flight", m.tracker.ActiveCount()),
				)
				m.cancel()
			}
		}
	}()
}

// Trigger requests shutdown without a signal, as if SIGTERM arrived.
func (m *Manager) Trigger() {
	m.cancel()
}

// Wait blocks until shutdown is requested.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// Shutdown stops new operations, waits for running ones, then runs the
// cleanups with whatever time is left (at least one second). It is idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	begin := time.Now()

	m.tracker.Close()
	if n := m.tracker.ActiveCount(); n > 0 {
		m.logger.Info("Waiting for in-flight operations",
			zap.Int64("count", n),
			zap.Strings("operations", m.tracker.ActiveNames()),
		)
	}
	if err := m.tracker.Wait(m.timeout); err != nil {
		m.logger.Warn("Gave up waiting for operations",
			zap.Duration("waited", time.Since(begin)),
			zap.Strings("remaining", m.tracker.ActiveNames()),
		)
	}

	remaining := m.timeout - time.Since(begin)
	if remaining < time.Second {
		remaining = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	m.logger.Debug("Running cleanups",
		zap.Int("count", m.registry.Count()),
		zap.Strings("handlers", m.registry.Names()),
	)
	errs := m.registry.Shutdown(ctx)
	for _, err := range errs {
		m.logger.Error("Cleanup failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %d cleanups failed: %w", len(errs), errs[0])
	}
	m.logger.Info("Shutdown complete",
		zap.Duration("duration", time.Since(begin)),
		zap.Int("signals", m.signals.Count()),
	)
	return nil
}

// Go runs fn in the background as a tracked operation. Its context carries
// the manager's values but is not cancelled by shutdown, so a generation
// that already started gets to finish and persist its result.
func (m *Manager) Go(name string, fn func(context.Context)) error {
	if !m.tracker.Start(name) {
		return ErrTrackerClosed
	}
	go func() {
		defer m.tracker.Done(name)
		fn(context.WithoutCancel(m.ctx))
	}()
	return nil
}

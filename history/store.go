package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lulu_studio/asset"
	"lulu_studio/logging"
)

// Store is the ordered history of generated images, most recent first,
// with write-through persistence into a single Slot.
//
// Persistence failures never escape: they are logged and counted, and the
// in-memory sequence stays authoritative for the session.
type Store struct {
	slot   Slot
	limit  int
	logger *logging.Logger

	// writeMu orders mutations with their slot writes; mu guards records only,
	// so readers never wait on disk.
	writeMu sync.Mutex
	mu      sync.RWMutex
	records []asset.Record

	saveFailures atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithLimit caps how many records are kept (0 means unlimited).
func WithLimit(limit int) Option {
	return func(s *Store) {
		if limit >= 0 {
			s.limit = limit
		}
	}
}

// WithLogger sets the logger used for swallowed persistence errors.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open creates a Store over slot and loads whatever the slot holds.
func Open(ctx context.Context, slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:   slot,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.records = s.Load(ctx)
	if s.limit > 0 && len(s.records) > s.limit {
		s.records = s.records[:s.limit]
	}
	return s
}

// Load reads and decodes the slot. Any failure yields an empty history.
// Entries of unknown kinds or malformed shape are dropped in place.
func (s *Store) Load(ctx context.Context) []asset.Record {
	data, err := s.slot.Read(ctx)
	if err != nil {
		s.logger.Warn("history slot unreadable, starting empty",
			zap.String("slot", s.slot.Name()), zap.Error(err))
		return []asset.Record{}
	}
	if len(data) == 0 {
		return []asset.Record{}
	}

	records, dropped, err := asset.DecodeRecords(data)
	if err != nil {
		s.logger.Warn("history slot corrupt, starting empty",
			zap.String("slot", s.slot.Name()), zap.Error(err))
		return []asset.Record{}
	}
	if dropped > 0 {
		s.logger.Info("dropped unrecognized history entries",
			zap.String("slot", s.slot.Name()), zap.Int("dropped", dropped))
	}
	s.logger.Debug("history loaded", zap.String("slot", s.slot.Name()), zap.Int("count", len(records)))
	return records
}

// Save serializes records and overwrites the slot.
func (s *Store) Save(ctx context.Context, records []asset.Record) error {
	data, err := asset.EncodeRecords(records)
	if err != nil {
		return err
	}
	return s.slot.Write(ctx, data)
}

// InsertMostRecent places record at the head of the history and persists.
// An older record with the same id is replaced, keeping ids unique.
func (s *Store) InsertMostRecent(ctx context.Context, record asset.Record) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := make([]asset.Record, 0, len(s.records)+1)
	next = append(next, record)
	for _, r := range s.records {
		if r.ID != record.ID {
			next = append(next, r)
		}
	}
	if s.limit > 0 && len(next) > s.limit {
		next = next[:s.limit]
	}
	s.records = next
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot, "insert")
}

// Remove deletes the record with id. Removing an unknown id is a no-op on
// the sequence; the history is persisted either way.
// It reports whether a record was removed.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	removed := false
	next := make([]asset.Record, 0, len(s.records))
	for _, r := range s.records {
		if r.ID == id {
			removed = true
			continue
		}
		next = append(next, r)
	}
	s.records = next
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot, "remove")
	return removed
}

// Prune keeps only the max most recent records (0 means keep all) and persists.
// It returns how many records were dropped.
func (s *Store) Prune(ctx context.Context, max int) int {
	if max <= 0 {
		return 0
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if len(s.records) <= max {
		s.mu.Unlock()
		return 0
	}
	dropped := len(s.records) - max
	s.records = append([]asset.Record(nil), s.records[:max]...)
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot, "prune")
	return dropped
}

// List returns a copy of the history, most recent first.
func (s *Store) List() []asset.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Get returns the record with id.
func (s *Store) Get(id string) (asset.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return asset.Record{}, false
}

// Latest returns the most recent record.
func (s *Store) Latest() (asset.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return asset.Record{}, false
	}
	return s.records[0], true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// SlotName returns the name of the backing slot.
func (s *Store) SlotName() string {
	return s.slot.Name()
}

// SavedAt returns when the slot was last written. ok is false when the slot
// cannot tell or has never been written.
func (s *Store) SavedAt(ctx context.Context) (t time.Time, ok bool) {
	stamped, isStamped := s.slot.(Stamped)
	if !isStamped {
		return time.Time{}, false
	}
	t, err := stamped.UpdatedAt(ctx)
	if err != nil {
		s.logger.Debug("cannot read slot timestamp", zap.String("slot", s.slot.Name()), zap.Error(err))
		return time.Time{}, false
	}
	return t, !t.IsZero()
}

// SaveFailures returns how many writes to the slot have failed.
func (s *Store) SaveFailures() int64 {
	return s.saveFailures.Load()
}

func (s *Store) copyLocked() []asset.Record {
	out := make([]asset.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) persist(ctx context.Context, records []asset.Record, op string) {
	if err := s.Save(ctx, records); err != nil {
		s.saveFailures.Add(1)
		s.logger.Warn("history save failed",
			zap.String("slot", s.slot.Name()),
			zap.String("op", op),
			zap.Int("count", len(records)),
			zap.Error(err))
	}
}

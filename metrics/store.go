package metrics

import (
	"sync"
	"time"
)

// MetricsStore keeps recent tasks in a ring buffer plus running totals.
// When a Prometheus exporter is attached, every task is also observed there.
type MetricsStore struct {
	mu sync.RWMutex

	taskHistory []TaskRecord
	taskCap     int
	taskHead    int
	taskSize    int

	totalTasks   int64
	totalSuccess int64
	totalErrors  int64
	taskByType   map[string]*taskTypeStats

	history HistoryStatus

	prom      *Prometheus
	startTime time.Time
	version   string
	provider  string
}

type taskTypeStats struct {
	count         int64
	successCount  int64
	totalDuration time.Duration
}

// StoreConfig configures a MetricsStore.
type StoreConfig struct {
	TaskHistoryCapacity int
	Version             string
	Provider            string
	// Prometheus, when set, receives every recorded task.
	Prometheus *Prometheus
}

// DefaultStoreConfig returns a store keeping the last 100 tasks.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		TaskHistoryCapacity: 100,
		Version:             "dev",
	}
}

// NewMetricsStore creates a store. startTime anchors the reported uptime.
func NewMetricsStore(config StoreConfig, startTime time.Time) *MetricsStore {
	capacity := config.TaskHistoryCapacity
	if capacity < 1 {
		capacity = 100
	}

	return &MetricsStore{
		taskHistory: make([]TaskRecord, capacity),
		taskCap:     capacity,
		taskByType:  make(map[string]*taskTypeStats),
		prom:        config.Prometheus,
		startTime:   startTime,
		version:     config.Version,
		provider:    config.Provider,
	}
}

// RecordTask implements TaskRecorder.
func (s *MetricsStore) RecordTask(task TaskRecord) {
	s.mu.Lock()
	s.taskHistory[s.taskHead] = task
	s.taskHead = (s.taskHead + 1) % s.taskCap
	if s.taskSize < s.taskCap {
		s.taskSize++
	}

	s.totalTasks++
	switch task.Status {
	case TaskStatusSuccess:
		s.totalSuccess++
	case TaskStatusError, TaskStatusElevatedAccess:
		s.totalErrors++
	}

	stats, ok := s.taskByType[task.Type]
	if !ok {
		stats = &taskTypeStats{}
		s.taskByType[task.Type] = stats
	}
	stats.count++
	if task.Status == TaskStatusSuccess {
		stats.successCount++
	}
	stats.totalDuration += task.Duration
	s.mu.Unlock()

	if s.prom != nil {
		s.prom.ObserveTask(task)
	}
}

// GetTaskMetrics implements MetricsCollector.
func (s *MetricsStore) GetTaskMetrics() TaskMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := TaskMetrics{
		TotalProcessed: s.totalTasks,
		TotalSuccess:   s.totalSuccess,
		TotalErrors:    s.totalErrors,
		ByType:         make(map[string]*TaskTypeMetrics, len(s.taskByType)),
	}

	for taskType, stats := range s.taskByType {
		typeMetrics := &TaskTypeMetrics{Count: stats.count}
		if stats.count > 0 {
			typeMetrics.SuccessRate = float64(stats.successCount) / float64(stats.count) * 100
			typeMetrics.AvgDuration = stats.totalDuration / time.Duration(stats.count)
		}
		metrics.ByType[taskType] = typeMetrics
	}

	return metrics
}

// GetRecentTasks implements MetricsCollector.
func (s *MetricsStore) GetRecentTasks(limit int) []TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.taskSize == 0 {
		return []TaskRecord{}
	}
	if limit > s.taskSize {
		limit = s.taskSize
	}

	result := make([]TaskRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.taskHead - limit + i + s.taskCap) % s.taskCap
		result[i] = s.taskHistory[idx]
	}
	return result
}

// UpdateHistoryStatus implements MetricsCollector.
func (s *MetricsStore) UpdateHistoryStatus(status HistoryStatus) {
	s.mu.Lock()
	s.history = status
	s.mu.Unlock()

	if s.prom != nil {
		s.prom.SetHistorySize(status.Count)
	}
}

// GetHistoryStatus implements MetricsCollector.
func (s *MetricsStore) GetHistoryStatus() HistoryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// GetSystemStatus implements MetricsCollector. The studio reports degraded
// once the history has failed to persist: it keeps working, but the
// session will not survive a restart.
func (s *MetricsStore) GetSystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	if s.history.SaveFailures > 0 {
		health = SystemHealthDegraded
	}

	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Provider:  s.provider,
		Uptime:    time.Since(s.startTime),
		LastCheck: time.Now(),
	}
}

var _ MetricsCollector = (*MetricsStore)(nil)

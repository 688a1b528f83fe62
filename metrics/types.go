// Package metrics records remote model calls and exposes them to the
// dashboard API and to Prometheus.
package metrics

import "time"

// TaskRecord represents one remote model call made by the studio.
type TaskRecord struct {
	// ID is the correlation id shared with the log lines of the call.
	ID string `json:"id"`
	// Type is the operation: enhance, generate or upscale.
	Type string `json:"type"`
	// Provider is the backend that served the call (gemini, openai, azure).
	Provider string `json:"provider,omitempty"`
	// Model is the remote model identifier.
	Model string `json:"model,omitempty"`
	// Status is one of the TaskStatus constants.
	Status string `json:"status"`
	// AssetID is the record produced by a successful generate or upscale.
	AssetID       string        `json:"asset_id,omitempty"`
	PromptPreview string        `json:"prompt_preview,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time,omitempty"`
	Duration      time.Duration `json:"duration"`
	ErrorMsg      string        `json:"error_msg,omitempty"`
}

// HistoryStatus describes the persisted history.
type HistoryStatus struct {
	Slot         string    `json:"slot"`
	Backend      string    `json:"backend"`
	Count        int       `json:"count"`
	SaveFailures int64     `json:"save_failures"`
	LastUpdate   time.Time `json:"last_update"`
}

// SystemStatus is the overall health reported by /api/metrics and /health.
type SystemStatus struct {
	Health    string        `json:"health"`
	Version   string        `json:"version"`
	Provider  string        `json:"provider"`
	Uptime    time.Duration `json:"uptime"`
	LastCheck time.Time     `json:"last_check"`
}

// TaskMetrics aggregates all recorded tasks.
type TaskMetrics struct {
	TotalProcessed int64                       `json:"total_processed"`
	TotalSuccess   int64                       `json:"total_success"`
	TotalErrors    int64                       `json:"total_errors"`
	ByType         map[string]*TaskTypeMetrics `json:"by_type"`
}

// TaskTypeMetrics aggregates tasks of one type.
type TaskTypeMetrics struct {
	Count int64 `json:"count"`
	// SuccessRate is a percentage (0-100).
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// Task status values.
const (
	TaskStatusSuccess = "success"
	TaskStatusError   = "error"
	// TaskStatusElevatedAccess marks an upscale refused for lack of a paid key.
	TaskStatusElevatedAccess = "elevated_access"
)

// System health values.
const (
	SystemHealthRunning  = "running"
	SystemHealthDegraded = "degraded"
)

// Task types.
const (
	TaskTypeEnhance  = "enhance"
	TaskTypeGenerate = "generate"
	TaskTypeUpscale  = "upscale"
)

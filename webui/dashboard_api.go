package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"lulu_studio/core"
	"lulu_studio/db"
	"lulu_studio/metrics"
)

// DashboardAPI serves the operational endpoints: health, recent remote
// calls and aggregate call metrics.
//
// Endpoints:
//   - GET /api/status   server health, uptime and history persistence
//   - GET /api/tasks    recent remote calls (?limit=)
//   - GET /api/metrics  per-operation totals and success rates
//   - GET /api/activity persisted call log, sqlite backend only (?operation=&limit=)
type DashboardAPI struct {
	store        metrics.MetricsCollector
	activity     ActivityLog
	defaultLimit int
	maxLimit     int
	versionInfo  VersionInfo
}

// VersionInfo is build metadata reported by /api/status.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

// ActivityLog is the persisted call log.
type ActivityLog interface {
	RecentActivity(ctx context.Context, operation string, limit int) ([]db.ActivityEntry, error)
}

// DashboardAPIConfig configures list limits and build metadata.
type DashboardAPIConfig struct {
	DefaultLimit int
	MaxLimit     int
	VersionInfo  VersionInfo
	// Activity is nil when history is not stored in SQLite.
	Activity ActivityLog
}

// DefaultDashboardAPIConfig returns a 20 item default page and a cap of 100.
func DefaultDashboardAPIConfig() DashboardAPIConfig {
	return DashboardAPIConfig{
		DefaultLimit: 20,
		MaxLimit:     100,
		VersionInfo:  VersionInfo{Version: "dev"},
	}
}

// NewDashboardAPI returns handlers reading from store.
func NewDashboardAPI(store metrics.MetricsCollector, config DashboardAPIConfig) *DashboardAPI {
	if config.DefaultLimit < 1 {
		config.DefaultLimit = 20
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = 100
	}
	return &DashboardAPI{
		store:        store,
		activity:     config.Activity,
		defaultLimit: config.DefaultLimit,
		maxLimit:     config.MaxLimit,
		versionInfo:  config.VersionInfo,
	}
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Health     string                `json:"health"`
	Version    string                `json:"version"`
	BuildDate  string                `json:"build_date,omitempty"`
	GitCommit  string                `json:"git_commit,omitempty"`
	Provider   string                `json:"provider"`
	Uptime     string                `json:"uptime"`
	UptimeSecs float64               `json:"uptime_secs"`
	LastCheck  time.Time             `json:"last_check"`
	History    metrics.HistoryStatus `json:"history"`
}

// HandleStatus handles GET /api/status.
func (api *DashboardAPI) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := api.store.GetSystemStatus()
	writeJSON(w, http.StatusOK, StatusResponse{
		Health:     status.Health,
		Version:    api.versionInfo.Version,
		BuildDate:  api.versionInfo.BuildDate,
		GitCommit:  api.versionInfo.GitCommit,
		Provider:   status.Provider,
		Uptime:     core.FormatDuration(status.Uptime),
		UptimeSecs: status.Uptime.Seconds(),
		LastCheck:  status.LastCheck,
		History:    api.store.GetHistoryStatus(),
	})
}

// TasksResponse is the body of /api/tasks.
type TasksResponse struct {
	Tasks []metrics.TaskRecord `json:"tasks"`
	Count int                  `json:"count"`
	Limit int                  `json:"limit"`
}

// HandleTasks handles GET /api/tasks. Tasks are oldest first.
func (api *DashboardAPI) HandleTasks(w http.ResponseWriter, r *http.Request) {
	limit := api.limit(r)
	tasks := api.store.GetRecentTasks(limit)
	if tasks == nil {
		tasks = []metrics.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, TasksResponse{Tasks: tasks, Count: len(tasks), Limit: limit})
}

// limit reads ?limit=, falling back to the default and capped at the maximum.
func (api *DashboardAPI) limit(r *http.Request) int {
	limit := api.defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, api.maxLimit)
}

// ActivityResponse is the body of /api/activity.
type ActivityResponse struct {
	Entries []db.ActivityEntry `json:"entries"`
	Count   int                `json:"count"`
	Limit   int                `json:"limit"`
}

// HandleActivity handles GET /api/activity. Entries are newest first.
func (api *DashboardAPI) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if api.activity == nil {
		writeError(w, http.StatusNotFound, "the activity log needs STORAGE_BACKEND=sqlite")
		return
	}
	operation := r.URL.Query().Get("operation")
	switch operation {
	case "", metrics.TaskTypeEnhance, metrics.TaskTypeGenerate, metrics.TaskTypeUpscale:
	default:
		writeError(w, http.StatusBadRequest, "unknown operation "+strconv.Quote(operation))
		return
	}
	limit := api.limit(r)
	entries, err := api.activity.RecentActivity(r.Context(), operation, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "activity log unavailable")
		return
	}
	if entries == nil {
		entries = []db.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, ActivityResponse{Entries: entries, Count: len(entries), Limit: limit})
}

// MetricsResponse is the body of /api/metrics.
type MetricsResponse struct {
	TotalProcessed int64                               `json:"total_processed"`
	TotalSuccess   int64                               `json:"total_success"`
	TotalErrors    int64                               `json:"total_errors"`
	SuccessRate    float64                             `json:"success_rate"`
	ByType         map[string]*metrics.TaskTypeMetrics `json:"by_type"`
}

// HandleMetrics handles GET /api/metrics.
func (api *DashboardAPI) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	m := api.store.GetTaskMetrics()

	var rate float64
	if m.TotalProcessed > 0 {
		rate = float64(m.TotalSuccess) / float64(m.TotalProcessed) * 100
	}
	writeJSON(w, http.StatusOK, MetricsResponse{
		TotalProcessed: m.TotalProcessed,
		TotalSuccess:   m.TotalSuccess,
		TotalErrors:    m.TotalErrors,
		SuccessRate:    rate,
		ByType:         m.ByType,
	})
}

// RegisterRoutes mounts the endpoints on mux.
func (api *DashboardAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", api.HandleStatus)
	mux.HandleFunc("GET /api/tasks", api.HandleTasks)
	mux.HandleFunc("GET /api/metrics", api.HandleMetrics)
	mux.HandleFunc("GET /api/activity", api.HandleActivity)
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// Headers are already out; an encode failure can only truncate the body.
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}

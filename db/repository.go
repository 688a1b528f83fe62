package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lulu_studio/logging"
	"lulu_studio/metrics"
)

// ActivityEntry is one row of activity_log.
type ActivityEntry struct {
	ID            int64         `json:"id"`
	CorrelationID string        `json:"correlation_id"`
	Operation     string        `json:"operation"`
	Status        string        `json:"status"`
	Model         string        `json:"model"`
	PromptPreview string        `json:"prompt_preview"`
	AssetID       string        `json:"asset_id,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Repository runs activity_log queries.
type Repository struct {
	db *Database
}

// NewRepository creates a repository over database.
func NewRepository(database *Database) *Repository {
	return &Repository{db: database}
}

// InsertActivity stores one entry and returns its id.
func (r *Repository) InsertActivity(ctx context.Context, e ActivityEntry) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	res, err := conn.ExecContext(ctx, `
		INSERT INTO activity_log
			(correlation_id, operation, status, model, prompt_preview, asset_id, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CorrelationID, e.Operation, e.Status, e.Model, e.PromptPreview, e.AssetID, e.ErrorMessage,
		e.Duration.Milliseconds(), e.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db: insert activity: %w", err)
	}
	return res.LastInsertId()
}

// RecentActivity returns up to limit entries, newest first. An empty
// operation matches every operation.
func (r *Repository) RecentActivity(ctx context.Context, operation string, limit int) ([]ActivityEntry, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT id, correlation_id, operation, status, model, prompt_preview, asset_id, error_message, duration_ms, created_at
		FROM activity_log
		WHERE (? = '' OR operation = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, operation, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("db: query activity: %w", err)
	}
	defer rows.Close()

	entries := []ActivityEntry{}
	for rows.Next() {
		var e ActivityEntry
		var durationMs, createdAt int64
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.Operation, &e.Status, &e.Model,
			&e.PromptPreview, &e.AssetID, &e.ErrorMessage, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("db: scan activity: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate activity: %w", err)
	}
	return entries, nil
}

// PruneActivity deletes entries older than cutoff and returns how many were removed.
func (r *Repository) PruneActivity(ctx context.Context, cutoff time.Time) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx, `DELETE FROM activity_log WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db: prune activity: %w", err)
	}
	return res.RowsAffected()
}

// ActivityRecorder writes every finished remote call to activity_log
// through an AsyncWriter. It implements metrics.TaskRecorder.
type ActivityRecorder struct {
	repo   *Repository
	writer *AsyncWriter[metrics.TaskRecord]
	logger *logging.Logger
}

// NewActivityRecorder starts the background writer.
func NewActivityRecorder(repo *Repository, logger *logging.Logger) *ActivityRecorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &ActivityRecorder{repo: repo, logger: logger}
	r.writer = NewAsyncWriter(r.insert, r.logFailure, DefaultAsyncWriterConfig())
	r.writer.Start()
	return r
}

// RecordTask implements metrics.TaskRecorder.
func (r *ActivityRecorder) RecordTask(task metrics.TaskRecord) {
	if !r.writer.Write(task) {
		r.logger.Warn("activity log queue full, dropping entry",
			zap.String("correlation_id", task.ID), zap.String("operation", task.Type))
	}
}

// Close flushes queued entries.
func (r *ActivityRecorder) Close(ctx context.Context) error {
	if !r.writer.Stop() {
		return fmt.Errorf("db: activity log drain timed out with %d pending", r.writer.Pending())
	}
	return nil
}

func (r *ActivityRecorder) insert(task metrics.TaskRecord) error {
	created := task.EndTime
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.repo.InsertActivity(context.Background(), ActivityEntry{
		CorrelationID: task.ID,
		Operation:     task.Type,
		Status:        task.Status,
		Model:         task.Model,
		PromptPreview: task.PromptPreview,
		AssetID:       task.AssetID,
		ErrorMessage:  task.ErrorMsg,
		Duration:      task.Duration,
		CreatedAt:     created,
	})
	return err
}

func (r *ActivityRecorder) logFailure(task metrics.TaskRecord, err error) {
	r.logger.Warn("activity log write failed",
		zap.String("correlation_id", task.ID), zap.String("operation", task.Type), zap.Error(err))
}

var _ metrics.TaskRecorder = (*ActivityRecorder)(nil)

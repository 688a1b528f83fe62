package metrics

// TaskRecorder receives every finished remote call.
type TaskRecorder interface {
	RecordTask(task TaskRecord)
}

// MetricsCollector is the read side used by the dashboard API.
type MetricsCollector interface {
	TaskRecorder

	GetTaskMetrics() TaskMetrics

	// GetRecentTasks returns up to limit tasks, oldest first.
	GetRecentTasks(limit int) []TaskRecord

	UpdateHistoryStatus(status HistoryStatus)

	GetHistoryStatus() HistoryStatus

	GetSystemStatus() SystemStatus
}

// Fanout returns a recorder that forwards to every non-nil recorder in order.
func Fanout(recorders ...TaskRecorder) TaskRecorder {
	var out fanout
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type fanout []TaskRecorder

func (f fanout) RecordTask(task TaskRecord) {
	for _, r := range f {
		r.RecordTask(task)
	}
}

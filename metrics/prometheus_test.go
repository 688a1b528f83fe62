package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_ObservesStoreTasks(t *testing.T) {
	prom := NewPrometheus("lulu_studio")
	store := NewMetricsStore(StoreConfig{Prometheus: prom}, time.Now())

	store.RecordTask(task("1", TaskTypeGenerate, TaskStatusSuccess, 3*time.Second))
	store.RecordTask(task("2", TaskTypeGenerate, TaskStatusError, time.Second))
	store.RecordTask(task("3", TaskTypeGenerate, TaskStatusSuccess, 2*time.Second))
	store.UpdateHistoryStatus(HistoryStatus{Count: 7})

	if got := testutil.ToFloat64(prom.operations.WithLabelValues(TaskTypeGenerate, TaskStatusSuccess)); got != 2 {
		t.Errorf("generate/success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(prom.operations.WithLabelValues(TaskTypeGenerate, TaskStatusError)); got != 1 {
		t.Errorf("generate/error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(prom.historySize); got != 7 {
		t.Errorf("history_records = %v, want 7", got)
	}
}

func TestPrometheus_Handler(t *testing.T) {
	prom := NewPrometheus("lulu_studio")
	prom.ObserveTask(task("1", TaskTypeUpscale, TaskStatusElevatedAccess, time.Second))

	rec := httptest.NewRecorder()
	prom.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`lulu_studio_operations_total{operation="upscale",status="elevated_access"} 1`,
		"lulu_studio_operation_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

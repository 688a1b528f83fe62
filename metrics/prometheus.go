package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus holds the studio's metric vectors on a private registry.
type Prometheus struct {
	Registry *prometheus.Registry

	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	historySize prometheus.Gauge
}

// NewPrometheus registers the studio metrics plus Go runtime and process
// collectors under namespace.
func NewPrometheus(namespace string) *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		Registry: registry,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Remote model calls by operation and outcome.",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of remote model calls.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"operation"},
		),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_records",
			Help:      "Records currently held in the history.",
		}),
	}

	registry.MustRegister(
		p.operations,
		p.duration,
		p.historySize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// ObserveTask counts the task and records its latency.
func (p *Prometheus) ObserveTask(task TaskRecord) {
	p.operations.WithLabelValues(task.Type, task.Status).Inc()
	p.duration.WithLabelValues(task.Type).Observe(task.Duration.Seconds())
}

// SetHistorySize updates the history gauge.
func (p *Prometheus) SetHistorySize(n int) {
	p.historySize.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{Registry: p.Registry})
}

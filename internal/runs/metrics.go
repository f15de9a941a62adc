package runs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JaimeStill/roster/internal/execute"
	"github.com/JaimeStill/roster/internal/reconcile"
)

// Metrics records execution outcomes. A nil *Metrics records nothing.
type Metrics struct {
	executions *prometheus.CounterVec
	items      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	active     prometheus.Gauge
}

// NewMetrics registers run collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "run_executions_total",
			Help:      "Run executions by job and final status.",
		}, []string{"job", "status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "run_items_total",
			Help:      "Plan items by job and outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roster",
			Name:      "run_execution_seconds",
			Help:      "Wall time of run executions.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"job"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roster",
			Name:      "run_executions_active",
			Help:      "Executions currently writing.",
		}),
	}
	reg.MustRegister(m.executions, m.items, m.duration, m.active)
	return m
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) finished(job reconcile.Job, status Status, result execute.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	j := string(job)
	m.active.Dec()
	m.executions.WithLabelValues(j, string(status)).Inc()
	m.items.WithLabelValues(j, "succeeded").Add(float64(result.Succeeded))
	m.items.WithLabelValues(j, "failed").Add(float64(result.Failed))
	m.items.WithLabelValues(j, "skipped").Add(float64(result.Skipped))
	m.duration.WithLabelValues(j).Observe(elapsed.Seconds())
}

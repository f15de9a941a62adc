package runs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JaimeStill/roster/internal/execute"
	"github.com/JaimeStill/roster/internal/reconcile"
)

func TestMetricsFinished(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.started()
	if got := testutil.ToFloat64(m.active); got != 1 {
		t.Fatalf("active = %v, want 1", got)
	}

	m.finished(reconcile.JobCleanup, StatusDone, execute.Result{Succeeded: 7, Failed: 2, Skipped: 1}, 3*time.Second)

	if got := testutil.ToFloat64(m.active); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.executions.WithLabelValues("cleanup", "done")); got != 1 {
		t.Errorf("executions = %v, want 1", got)
	}

	tests := map[string]float64{"succeeded": 7, "failed": 2, "skipped": 1}
	for outcome, want := range tests {
		if got := testutil.ToFloat64(m.items.WithLabelValues("cleanup", outcome)); got != want {
			t.Errorf("items[%s] = %v, want %v", outcome, got, want)
		}
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.started()
	m.finished(reconcile.JobCleanup, StatusFailed, execute.Result{}, time.Second)
}

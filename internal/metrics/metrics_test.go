package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *SearchMetrics
	m.IncSearch("succeeded")
	m.ObserveDuration(time.Second)
}

func TestIncSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSearchMetrics(reg)

	m.IncSearch("failed")
	m.IncSearch("failed")
	m.IncSearch("succeeded")

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("failed")); got != 2.0 {
		t.Errorf("failed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("succeeded")); got != 1.0 {
		t.Errorf("succeeded = %v, want 1", got)
	}

	m.ObserveDuration(120 * time.Millisecond)
	if n := testutil.CollectAndCount(m.Duration); n != 1 {
		t.Errorf("expected 1 histogram series, got %d", n)
	}
}

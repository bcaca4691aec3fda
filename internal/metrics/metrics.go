package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SearchMetrics counts upstream search submissions. A nil *SearchMetrics is valid and records nothing.
type SearchMetrics struct {
	Requests *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewSearchMetrics creates the collectors and registers them with reg
func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	m := &SearchMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assessment_search_requests_total",
				Help: "Upstream search submissions by outcome.",
			},
			[]string{"status"},
		),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_search_duration_seconds",
			Help:    "Upstream search latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}

	return m
}

func (m *SearchMetrics) IncSearch(status string) {
	if m == nil || m.Requests == nil {
		return
	}

	m.Requests.WithLabelValues(status).Inc()
}

func (m *SearchMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.Duration == nil {
		return
	}

	m.Duration.Observe(d.Seconds())
}

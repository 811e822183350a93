package poller

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the acquisition loop.
type Metrics struct {
	CyclesTotal     prometheus.Counter
	ReadingsStored  prometheus.Counter
	PollRequests    *prometheus.CounterVec // labels: feed, outcome={success,failure,no_data}
	CycleDuration   prometheus.Histogram
	UnhealthySeries prometheus.Gauge
}

// NewMetrics creates and registers all poller metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.ReadingsStored,
		m.PollRequests,
		m.CycleDuration,
		m.UnhealthySeries,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "poll_cycles_total",
			Help:      "Total completed polling cycles.",
		}),
		ReadingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "readings_stored_total",
			Help:      "Total new readings persisted by the polling loop.",
		}),
		PollRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverwatch",
			Name:      "poll_requests_total",
			Help:      "Poll attempts by feed and outcome.",
		}, []string{"feed", "outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riverwatch",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of a complete polling cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		UnhealthySeries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riverwatch",
			Name:      "unhealthy_series",
			Help:      "Monitored series currently stale, degraded, or offline.",
		}),
	}
}

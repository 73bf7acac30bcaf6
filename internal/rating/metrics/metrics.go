package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rating module.
type Metrics struct {
	Submissions  *prometheus.CounterVec
	StatsCompute prometheus.Histogram
	StatsCache   *prometheus.CounterVec
}

// New registers the rating metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicpulse_rating_submissions_total",
			Help: "Accepted rating submissions by outcome",
		}, []string{"result"}), // result: "created", "updated"

		StatsCompute: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicpulse_rating_stats_compute_seconds",
			Help:    "Duration of aggregate computations that reached the ledger",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		StatsCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicpulse_rating_stats_cache_total",
			Help: "Stats cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

func (m *Metrics) IncrementSubmission(created bool) {
	if m == nil {
		return
	}
	result := "updated"
	if created {
		result = "created"
	}
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStatsCompute(d time.Duration) {
	if m != nil {
		m.StatsCompute.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementStatsCache(result string) {
	if m != nil {
		m.StatsCache.WithLabelValues(result).Inc()
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the enrollment module.
type Metrics struct {
	Registered    *prometheus.CounterVec
	Revoked       prometheus.Counter
	TemplateBytes prometheus.Histogram
	Verifications *prometheus.CounterVec
}

// New registers the enrollment metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicpulse_enrollment_registered_total",
			Help: "Enrollment registrations by outcome",
		}, []string{"result"}), // result: "created", "replaced"

		Revoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "civicpulse_enrollment_revoked_total",
			Help: "Enrollments removed by revocation",
		}),

		TemplateBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicpulse_enrollment_template_bytes",
			Help:    "Size of registered enrollment templates",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),

		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicpulse_enrollment_verifications_total",
			Help: "Verification attempts by outcome",
		}, []string{"result"}), // result: "matched", "not_matched", "absent"
	}
}

// IncrementRegistered records a registration.
func (m *Metrics) IncrementRegistered(replaced bool, templateBytes int) {
	if m == nil {
		return
	}
	result := "created"
	if replaced {
		result = "replaced"
	}
	m.Registered.WithLabelValues(result).Inc()
	m.TemplateBytes.Observe(float64(templateBytes))
}

// IncrementRevoked records a revocation that removed an enrollment.
func (m *Metrics) IncrementRevoked() {
	if m != nil {
		m.Revoked.Inc()
	}
}

// IncrementVerification records a verification outcome.
func (m *Metrics) IncrementVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

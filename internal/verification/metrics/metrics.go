// Package metrics provides observability for the verification engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks verification outcomes and latency.
type Metrics struct {
	Verifications        *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
}

// New creates and registers all verification metrics.
func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_verifications_total",
			Help: "Total identity verification queries by result",
		}, []string{"result"}),
		VerificationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesta_verification_duration_seconds",
			Help:    "Duration of identity verification queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_verification_cache_hits_total",
			Help: "Verification results served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_verification_cache_misses_total",
			Help: "Verification queries that re-derived from the ledger",
		}),
	}
}

// ObserveVerification records one verification query.
func (m *Metrics) ObserveVerification(start time.Time, verified bool) {
	result := "not_verified"
	if verified {
		result = "verified"
	}
	m.Verifications.WithLabelValues(result).Inc()
	m.VerificationDuration.Observe(time.Since(start).Seconds())
}

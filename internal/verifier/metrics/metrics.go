// Package metrics exposes Prometheus instrumentation for the verifier facade.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds verification counters. Methods are nil-safe.
type Metrics struct {
	verifications *prometheus.CounterVec
	cacheHits     prometheus.Counter
	batchSize     prometheus.Histogram
}

// New creates and registers verifier metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_verifications_total",
			Help: "Verification outcomes by reason.",
		}, []string{"reason"}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_verification_cache_hits_total",
			Help: "Verifications served from the result cache.",
		}),
		batchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesta_batch_verify_size",
			Help:    "Distribution of batch verification sizes.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncOutcome(reason string) {
	if m != nil {
		m.verifications.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.batchSize.Observe(float64(n))
	}
}

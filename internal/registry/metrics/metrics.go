// Package metrics exposes Prometheus instrumentation for the registry core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds registry core counters. All methods are nil-safe so wiring
// metrics stays optional in tests.
type Metrics struct {
	credentialsIssued  prometheus.Counter
	credentialsRevoked prometheus.Counter
	statusUpdates      prometheus.Counter
	batchSize          prometheus.Histogram
	mutationsRejected  *prometheus.CounterVec
}

// New creates and registers registry metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		credentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_credentials_issued_total",
			Help: "Total credentials issued.",
		}),
		credentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_credentials_revoked_total",
			Help: "Total credentials revoked.",
		}),
		statusUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesta_credential_status_updates_total",
			Help: "Total explicit credential status updates.",
		}),
		batchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesta_batch_issue_size",
			Help:    "Distribution of batch issuance sizes.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		mutationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesta_mutations_rejected_total",
			Help: "Mutations rejected before reaching the store, by error code.",
		}, []string{"code"}),
	}
}

func (m *Metrics) IncIssued(n int) {
	if m != nil {
		m.credentialsIssued.Add(float64(n))
	}
}

func (m *Metrics) IncRevoked() {
	if m != nil {
		m.credentialsRevoked.Inc()
	}
}

func (m *Metrics) IncStatusUpdates() {
	if m != nil {
		m.statusUpdates.Inc()
	}
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.batchSize.Observe(float64(n))
	}
}

func (m *Metrics) IncRejected(code string) {
	if m != nil {
		m.mutationsRejected.WithLabelValues(code).Inc()
	}
}

package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the query-serving metrics.
type Metrics struct {
	queriesTotal    *prometheus.CounterVec
	queryDuration   prometheus.Histogram
	retrievedChunks prometheus.Histogram
}

// NewMetrics creates and registers the metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "answerd",
			Name:      "queries_total",
			Help:      "Queries served, labeled by retrieval mode and outcome.",
		}, []string{"mode", "outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "answerd",
			Name:      "query_duration_seconds",
			Help:      "End-to-end pipeline latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		retrievedChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "answerd",
			Name:      "retrieved_chunks",
			Help:      "Chunks retrieved per query before reranking.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 50, 100},
		}),
	}
	reg.MustRegister(m.queriesTotal, m.queryDuration, m.retrievedChunks)
	return m
}

func (m *Metrics) observe(mode, outcome string, seconds float64, retrieved int) {
	m.queriesTotal.WithLabelValues(mode, outcome).Inc()
	m.queryDuration.Observe(seconds)
	m.retrievedChunks.Observe(float64(retrieved))
}

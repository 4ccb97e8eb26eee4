package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"query-insights/internal/domain"
)

// Metrics instruments query fetches.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     prometheus.Histogram
}

// NewMetrics registers the fetch metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		fetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "insights",
			Name:      "query_fetches_total",
			Help:      "Total number of query fetches by variant and status.",
		}, []string{"variant", "status"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insights",
			Name:      "query_fetch_duration_seconds",
			Help:      "Time spent running queries against their data source.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.6, 1, 3, 6, 10, 30, 60},
		}, []string{"variant"}),
		rows: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "insights",
			Name:      "query_result_rows",
			Help:      "Number of rows returned by successful fetches.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

func (m *Metrics) observeFetch(doc *domain.QueryDocument, elapsed time.Duration) {
	if m == nil {
		return
	}
	variant := domain.VariantOf(doc).String()
	m.fetches.WithLabelValues(variant, string(doc.Status)).Inc()
	m.duration.WithLabelValues(variant).Observe(elapsed.Seconds())
	if doc.Status == domain.QueryStatusSuccess {
		m.rows.Observe(float64(doc.ResultsRowCount))
	}
}

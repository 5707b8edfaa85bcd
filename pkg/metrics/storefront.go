package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultPartial = "partial"
)

// StorefrontMetrics records catalog refreshes and checkout reconciliation
// outcomes. A nil receiver is a no-op so collaborators can run without it.
type StorefrontMetrics struct {
	catalogRefresh    *prometheus.CounterVec
	catalogArticles   prometheus.Gauge
	reconciliations   *prometheus.CounterVec
	lineFailures      *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	ordersRecorded    *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	m := &StorefrontMetrics{
		catalogRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_catalog_refresh_total",
			Help: "Catalog refresh attempts by result.",
		}, []string{"result"}),
		catalogArticles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_catalog_articles",
			Help: "Articles held in the catalog cache after the last successful refresh.",
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_reconciliations_total",
			Help: "Stock reconciliations by result (success, failure, partial).",
		}, []string{"result"}),
		lineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_reconciliation_line_failures_total",
			Help: "Failed reconciliation lines by reason.",
		}, []string{"reason"}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_reconciliation_duration_seconds",
			Help:    "Wall time of a full reconciliation fan-out.",
			Buckets: prometheus.DefBuckets,
		}),
		ordersRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_recorded_total",
			Help: "Order record writes by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.catalogRefresh, m.catalogArticles, m.reconciliations, m.lineFailures, m.reconcileDuration, m.ordersRecorded)
	return m
}

// CatalogRefreshed records a refresh outcome; articles is ignored on failure.
func (m *StorefrontMetrics) CatalogRefreshed(ok bool, articles int) {
	if m == nil || m.catalogRefresh == nil {
		return
	}
	if !ok {
		m.catalogRefresh.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.catalogRefresh.WithLabelValues(ResultSuccess).Inc()
	m.catalogArticles.Set(float64(articles))
}

// Reconciled records a finished reconciliation.
func (m *StorefrontMetrics) Reconciled(result string, duration time.Duration) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalizeLabel(result)).Inc()
	m.reconcileDuration.Observe(duration.Seconds())
}

// LineFailed counts a failed reconciliation line.
func (m *StorefrontMetrics) LineFailed(reason string) {
	if m == nil || m.lineFailures == nil {
		return
	}
	m.lineFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// OrderRecorded counts an order write.
func (m *StorefrontMetrics) OrderRecorded(ok bool) {
	if m == nil || m.ordersRecorded == nil {
		return
	}
	result := ResultSuccess
	if !ok {
		result = ResultFailure
	}
	m.ordersRecorded.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

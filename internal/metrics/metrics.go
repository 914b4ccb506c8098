package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileOutcomes counts PDF/CSV total comparisons by outcome.
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_reconcile_outcomes_total",
			Help: "Total number of invoice reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	// InvoiceRowsLoaded counts report rows committed to the invoices table.
	InvoiceRowsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "freight_invoice_rows_loaded_total",
			Help: "Total number of invoice rows persisted",
		},
	)

	// RatedItems counts rated line items by status.
	RatedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_rated_items_total",
			Help: "Total number of rated line items by status",
		},
		[]string{"status"},
	)

	// ExternalCallDuration tracks search/model/storage call latency.
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "freight_external_call_duration_seconds",
			Help:    "External call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	// DimensionCacheHits counts resolutions served without calling out.
	DimensionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "freight_dimension_cache_hits_total",
			Help: "Total number of dimension lookups served from cache",
		},
	)

	// InboxJobs counts queued inbox pairs by outcome (ok, error, rejected).
	InboxJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_inbox_jobs_total",
			Help: "Total number of inbox jobs by outcome",
		},
		[]string{"outcome"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "freight_inbox_queue_depth",
			Help: "Jobs waiting in the inbox queue",
		},
	)
)

// ObserveExternal records one call to service that started at start.
func ObserveExternal(service string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExternalCallDuration.WithLabelValues(service, outcome).Observe(time.Since(start).Seconds())
}

// Package metrics provides Prometheus metrics for the Binder Tracker application.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "binder_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Catalog (Pokemon TCG API) Metrics
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binder_catalog_requests_total",
			Help: "Total number of catalog API requests",
		},
		[]string{"operation", "result"}, // operation: "get", "search", "autocomplete"; result: "success", "not_found", "error"
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "binder_catalog_request_duration_seconds",
			Help:    "Catalog API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	AutocompleteCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "binder_autocomplete_cache_hits_total",
			Help: "Autocomplete suggestion cache hit count",
		},
	)

	AutocompleteCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "binder_autocomplete_cache_misses_total",
			Help: "Autocomplete suggestion cache miss count",
		},
	)

	// Resolver Metrics
	CardResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binder_card_resolutions_total",
			Help: "Card resolutions by outcome",
		},
		[]string{"source"}, // "cache", "catalog", "failed"
	)

	CardFetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "binder_card_fetch_retries_total",
			Help: "Catalog fetches retried after a transient failure",
		},
	)

	CardDatabaseSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "binder_card_database_size",
			Help: "Number of cards cached in the local store",
		},
	)

	// Valuation Metrics
	ValuationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "binder_valuation_duration_seconds",
			Help:    "Time taken to value a set of binder cards",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	UnresolvedCardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "binder_valuation_unresolved_cards_total",
			Help: "Cards valued at zero because they could not be resolved",
		},
	)

	// Card Sync Worker Metrics
	CardSyncUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binder_card_sync_updates_total",
			Help: "Cards refreshed by the sync worker",
		},
		[]string{"result"}, // "synced", "failed"
	)

	CardSyncQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "binder_card_sync_queue_size",
			Help: "Number of cards waiting in the priority refresh queue",
		},
	)

	CardSyncBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "binder_card_sync_batch_duration_seconds",
			Help:    "Time taken to process a card sync batch",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Binder Metrics
	BindersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "binder_binders_total",
			Help: "Number of binders",
		},
	)

	BinderCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "binder_binder_cards_total",
			Help: "Total number of card copies across all binders",
		},
	)

	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binder_value_snapshots_total",
			Help: "Binder value snapshots recorded",
		},
		[]string{"result"}, // "success", "failed"
	)
)

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

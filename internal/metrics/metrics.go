// Package metrics provides Prometheus metrics for the PokeVault backend.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pv_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Scan Workflow Metrics
	IdentifyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_identify_requests_total",
			Help: "Total number of card recognition requests",
		},
		[]string{"result"}, // "success" or "failed"
	)

	IdentifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pv_identify_duration_seconds",
			Help:    "Time taken by card recognition requests",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 90},
		},
	)

	ScanStaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pv_scan_stale_results_discarded_total",
			Help: "Async scan results discarded because a newer action superseded them",
		},
	)

	// Price Fetch Metrics
	PriceChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_price_chunks_total",
			Help: "Price fetch chunks processed by fetcher and outcome",
		},
		[]string{"fetcher", "result"}, // result: "ok" or "failed"
	)

	PriceRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pv_price_refresh_duration_seconds",
			Help:    "Time taken to refresh one batch of price quotes",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"fetcher"},
	)

	GradedCooldownRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pv_graded_cooldown_rejections_total",
			Help: "Remote graded-price lookups rejected by the per-card cooldown",
		},
	)

	// Price Tracker API Metrics
	PriceTrackerRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pv_pricetracker_requests_total",
			Help: "Total number of price tracker API requests made",
		},
	)

	PriceTrackerQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pv_pricetracker_quota_remaining",
			Help: "Remaining price tracker API requests for today",
		},
	)

	PriceTrackerQuotaLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pv_pricetracker_quota_limit",
			Help: "Daily price tracker API request limit",
		},
	)

	// Collection Metrics
	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pv_collection_cards_total",
			Help: "Total number of cards in the collection",
		},
	)

	CollectionValueUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pv_collection_value_usd",
			Help: "Total estimated value of the collection in USD",
		},
	)

	CollectionPricedCards = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pv_collection_priced_cards",
			Help: "Number of distinct collection cards with a known price",
		},
	)

	// Image Cache Metrics
	ImageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pv_image_cache_hits_total",
			Help: "Card image cache hit count",
		},
	)

	ImageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pv_image_cache_misses_total",
			Help: "Card image cache miss count",
		},
	)

	ImageCacheErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pv_image_cache_errors_total",
			Help: "Card image fetch or store failures",
		},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "winddatas_provider_api_calls_total",
			Help: "Total upstream provider requests",
		},
		[]string{"provider", "status"},
	)

	ProviderAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "winddatas_provider_api_latency_seconds",
			Help:    "Upstream provider request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PayloadCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "winddatas_payload_cache_hits_total",
			Help: "Provider payloads served from the local cache",
		},
		[]string{"provider"},
	)

	ReadingsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "winddatas_daily_readings_total",
			Help: "Daily readings produced after normalization and aggregation",
		},
		[]string{"provider"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "winddatas_rows_dropped_total",
			Help: "Malformed provider rows dropped during normalization",
		},
		[]string{"provider"},
	)

	ComparisonsComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "winddatas_comparisons_total",
			Help: "Pairwise source comparisons computed",
		},
	)

	SitesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "winddatas_sites_processed_total",
			Help: "Sites processed by outcome (compared, skipped, failed)",
		},
		[]string{"outcome"},
	)
)

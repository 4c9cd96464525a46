package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics.
var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_hits_total",
			Help: "Fetches answered from fresh cached data",
		},
		[]string{"kind"},
	)

	cacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_fetches_total",
			Help: "Loader calls issued by the query cache",
		},
		[]string{"kind"},
	)

	cacheJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_dedup_joins_total",
			Help: "Fetches that joined an in-flight loader call",
		},
		[]string{"kind"},
	)

	cacheFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_fetch_errors_total",
			Help: "Loader calls that failed",
		},
		[]string{"kind"},
	)

	cacheDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_dropped_results_total",
			Help: "Loader results discarded because their entry was evicted",
		},
		[]string{"kind"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "query_cache_entries",
			Help: "Number of entries currently held by the query cache",
		},
	)
)

package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics.
var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total number of requests sent to the catalog service",
		},
		[]string{"op", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Catalog request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func observeRequest(op string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	requestsTotal.WithLabelValues(op, outcome).Inc()
	requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

package mutation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mutations_total",
		Help: "Total number of mutations by operation and outcome",
	},
	[]string{"op", "outcome"},
)

func observe(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}
	mutationsTotal.WithLabelValues(op, outcome).Inc()
}

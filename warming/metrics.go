package warming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var keysWarmed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_warming_keys_warmed",
	Help: "Cache keys written by the warmer, by category.",
}, []string{"category"})

var warmFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_warming_failures",
	Help: "Warming cycles that ended with an error, by category.",
}, []string{"category"})

var warmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "coinpulse_warming_pass_duration_seconds",
	Help:    "A histogram of full warming pass latencies.",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
})

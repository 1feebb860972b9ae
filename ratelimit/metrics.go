package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var denied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_ratelimit_denied",
	Help: "Requests rejected for exceeding their rate limit, by endpoint.",
}, []string{"endpoint"})

var failOpen = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_ratelimit_fail_open",
	Help: "Requests allowed because the shared counter was unreachable.",
})

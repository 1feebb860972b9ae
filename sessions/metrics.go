package sessions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_session_cache_hits",
	Help: "Session lookups served from the cache.",
})

var sessionMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_session_cache_misses",
	Help: "Session lookups that found nothing.",
})

var sessionWrites = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_session_cache_writes",
	Help: "Sessions written to the cache.",
})

var blacklistWrites = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_token_blacklist_writes",
	Help: "Tokens added to the revocation blacklist.",
})

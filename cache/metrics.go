package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fetchHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_cache_hits",
	Help: "Number of cache hits on the read-through path, by entity type",
}, []string{"entity"})

var fetchMisses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_cache_misses",
	Help: "Number of cache misses on the read-through path, by entity type",
}, []string{"entity"})

var decodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_cache_decode_failures",
	Help: "Cached values that failed to deserialize and were treated as misses; a sustained rate indicates version skew",
}, []string{"entity"})

var readFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_cache_read_failures",
	Help: "Backend read failures downgraded to misses, by entity type",
}, []string{"entity"})

var writeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_cache_write_failures",
	Help: "Best-effort cache writes that failed, by entity type",
}, []string{"entity"})

var storeOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_cache_store_ops",
	Help: "Operations issued to the cache backend, by operation",
}, []string{"op"})

var storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_cache_store_errors",
	Help: "Cache backend operations that failed, by operation",
}, []string{"op"})

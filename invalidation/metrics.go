package invalidation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_invalidation_events_handled",
	Help: "Invalidation events applied to the cache, by event type.",
}, []string{"event"})

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_invalidation_events_dropped",
	Help: "Invalidation events ignored because they were unknown or incomplete.",
}, []string{"reason"})

var eventsDeduped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_invalidation_events_deduped",
	Help: "Duplicate invalidation events suppressed inside the dedupe window.",
})

var eventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_invalidation_payloads_malformed",
	Help: "Pub/sub payloads that did not decode as invalidation events.",
})

var keysInvalidated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coinpulse_invalidation_keys_total",
	Help: "Cache keys removed, by invalidation strategy.",
}, []string{"strategy"})

var patternFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_invalidation_pattern_failures",
	Help: "Pattern purges that failed partway and were not retried.",
})

var flushes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coinpulse_invalidation_flushes",
	Help: "Full keyspace flushes.",
})

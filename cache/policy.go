package cache

import (
	"fmt"
	"sort"
	"time"
)

// Class buckets entity types by how much their entries matter under
// backend memory pressure. The shared backend runs allkeys-lru; classes
// are advisory, used in capacity planning and keyspace reporting rather
// than enforced by the backend.
type Class string

const (
	ClassHot  Class = "hot"
	ClassWarm Class = "warm"
	ClassCold Class = "cold"
)

// Policy maps entity types to TTLs. It is immutable once constructed; TTL
// changes ship as a redeploy, never as runtime mutation.
//
// The spread is deliberate: price data is cheap to recompute but changes
// sub-second, so a short TTL bounds staleness without hammering the
// backend. Sentiment and portfolio valuations are expensive to recompute
// but drift slowly, so a long TTL amortizes the cost.
type Policy struct {
	ttls map[EntityType]time.Duration
}

// DefaultPolicy is the production TTL table.
func DefaultPolicy() *Policy {
	return &Policy{ttls: map[EntityType]time.Duration{
		EntityPrice:                10 * time.Second,
		EntityAnalyticsMovingAvg:   60 * time.Second,
		EntityAnalyticsVolatility:  60 * time.Second,
		EntityAnalyticsCorrelation: 60 * time.Second,
		EntitySentiment:            5 * time.Minute,
		EntitySentimentTrend:       10 * time.Minute,
		EntityPortfolio:            10 * time.Minute,
		EntityPortfolioPerf:        5 * time.Minute,
		EntityUser:                 15 * time.Minute,
		EntitySession:              24 * time.Hour,
		EntityTokenBlacklist:       time.Hour,
		EntityCoinsTop:             time.Hour,
		EntityNews:                 30 * time.Minute,
		EntityRateLimit:            time.Minute,
		EntityMarketSummary:        5 * time.Minute,
		EntityMarketTrending:       10 * time.Minute,
	}}
}

// NewPolicy builds a policy from an explicit TTL table, for tests and
// non-production tuning. Every entity type must be registered in the key
// table and every TTL strictly positive.
func NewPolicy(ttls map[EntityType]time.Duration) (*Policy, error) {
	cp := make(map[EntityType]time.Duration, len(ttls))
	for entity, ttl := range ttls {
		if _, ok := keySpecs[entity]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("non-positive TTL %v for entity type %q", ttl, entity)
		}
		cp[entity] = ttl
	}
	return &Policy{ttls: cp}, nil
}

// TTLFor returns the expiry applied to writes of one entity type.
func (p *Policy) TTLFor(entity EntityType) (time.Duration, error) {
	ttl, ok := p.ttls[entity]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}
	return ttl, nil
}

// ClassFor derives the eviction class from the staleness window: refreshed
// within a minute is hot, within fifteen minutes warm, cold otherwise.
func (p *Policy) ClassFor(entity EntityType) (Class, error) {
	ttl, err := p.TTLFor(entity)
	if err != nil {
		return "", err
	}
	switch {
	case ttl <= time.Minute:
		return ClassHot, nil
	case ttl <= 15*time.Minute:
		return ClassWarm, nil
	default:
		return ClassCold, nil
	}
}

// Types returns the entity types registered in this policy, sorted.
func (p *Policy) Types() []EntityType {
	out := make([]EntityType, 0, len(p.ttls))
	for entity := range p.ttls {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package cache

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// EntityType identifies one class of cached value. The set is closed:
// every cacheable entity on the platform is enumerated below, and key
// construction for anything else is an error.
type EntityType string

const (
	EntityPrice                EntityType = "price"
	EntityAnalyticsMovingAvg   EntityType = "analytics_moving_avg"
	EntityAnalyticsVolatility  EntityType = "analytics_volatility"
	EntityAnalyticsCorrelation EntityType = "analytics_correlation"
	EntitySentiment            EntityType = "sentiment"
	EntitySentimentTrend       EntityType = "sentiment_trend"
	EntityPortfolio            EntityType = "portfolio"
	EntityPortfolioPerf        EntityType = "portfolio_perf"
	EntityUser                 EntityType = "user"
	EntitySession              EntityType = "session"
	EntityTokenBlacklist       EntityType = "token_blacklist"
	EntityCoinsTop             EntityType = "coins_top"
	EntityNews                 EntityType = "news"
	EntityRateLimit            EntityType = "rate_limit"
	EntityMarketSummary        EntityType = "market_summary"
	EntityMarketTrending       EntityType = "market_trending"
)

// Params carries the named identifying parameters for one key. Values may
// be strings or anything with a stable fmt representation (ints, mostly).
type Params map[string]any

// keySpec pins the rendered template and the parameter set for one entity
// type. Parameter ordering is fixed here, not by call-site argument order,
// so logically identical lookups always produce byte-identical keys.
type keySpec struct {
	template string
	params   []string
}

var keySpecs = map[EntityType]keySpec{
	EntityPrice:                {"price:{coin_id}", []string{"coin_id"}},
	EntityAnalyticsMovingAvg:   {"analytics:moving_average:{coin_id}:{period}", []string{"coin_id", "period"}},
	EntityAnalyticsVolatility:  {"analytics:volatility:{coin_id}:{period}", []string{"coin_id", "period"}},
	EntityAnalyticsCorrelation: {"analytics:correlation:{coin_1}:{coin_2}:{period}", []string{"coin_1", "coin_2", "period"}},
	EntitySentiment:            {"sentiment:{coin_id}", []string{"coin_id"}},
	EntitySentimentTrend:       {"sentiment_trend:{coin_id}:{period}", []string{"coin_id", "period"}},
	EntityPortfolio:            {"portfolio:{user_id}:{portfolio_id}", []string{"user_id", "portfolio_id"}},
	EntityPortfolioPerf:        {"portfolio_perf:{user_id}:{portfolio_id}", []string{"user_id", "portfolio_id"}},
	EntityUser:                 {"user:{user_id}", []string{"user_id"}},
	EntitySession:              {"session:{session_id}", []string{"session_id"}},
	EntityTokenBlacklist:       {"token:{token_hash}", []string{"token_hash"}},
	EntityCoinsTop:             {"coins:top:{n}", []string{"n"}},
	EntityNews:                 {"news:{coin_id}:{source}", []string{"coin_id", "source"}},
	EntityRateLimit:            {"rate_limit:{endpoint}:{user_id}", []string{"endpoint", "user_id"}},
	EntityMarketSummary:        {"market:summary:global", nil},
	EntityMarketTrending:       {"market:trending", nil},
}

// characters that would let a parameter value shift key structure or leak
// into glob matching
const reservedParamChars = ":*?[]/ \t\n"

// BuildKey renders the canonical cache key for an entity type. The
// parameter set must match the entity type's spec exactly: a missing or
// extra parameter is an ErrInvalidKeySpec, never silently dropped.
//
// Note that analytics_correlation does not canonicalize its coin pair:
// (A,B) and (B,A) occupy distinct cache slots. Callers computing symmetric
// correlations must normalize the pair themselves.
func BuildKey(entity EntityType, params Params) (string, error) {
	spec, ok := keySpecs[entity]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}
	out := spec.template
	for _, name := range spec.params {
		v, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: %s requires parameter %q", ErrInvalidKeySpec, entity, name)
		}
		s := paramString(v)
		if s == "" {
			return "", fmt.Errorf("%w: %s parameter %q is empty", ErrInvalidKeySpec, entity, name)
		}
		if strings.ContainsAny(s, reservedParamChars) {
			return "", fmt.Errorf("%w: %s parameter %q contains reserved characters", ErrInvalidKeySpec, entity, name)
		}
		out = strings.Replace(out, "{"+name+"}", s, 1)
	}
	for name := range params {
		if !slices.Contains(spec.params, name) {
			return "", fmt.Errorf("%w: %s does not take parameter %q", ErrInvalidKeySpec, entity, name)
		}
	}
	return out, nil
}

func paramString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// Wildcard returns the glob matching every key of one entity type, for
// keyspace inspection and coarse invalidation.
func Wildcard(entity EntityType) (string, error) {
	spec, ok := keySpecs[entity]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}
	out := spec.template
	for _, name := range spec.params {
		out = strings.Replace(out, "{"+name+"}", "*", 1)
	}
	return out, nil
}

// Template returns the documented key template for an entity type, with
// {name} placeholders intact.
func Template(entity EntityType) (string, error) {
	spec, ok := keySpecs[entity]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entity)
	}
	return spec.template, nil
}

// Types returns every registered entity type in stable sorted order.
func Types() []EntityType {
	out := make([]EntityType, 0, len(keySpecs))
	for entity := range keySpecs {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

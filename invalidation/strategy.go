package invalidation

import (
	"fmt"
)

// Strategy labels how a cache entry came to be removed. TTL expiry is
// passive (redis does it for us); events and manual operations purge
// eagerly.
type Strategy string

const (
	StrategyTTL    Strategy = "ttl"
	StrategyEvent  Strategy = "event"
	StrategyManual Strategy = "manual"
)

// eventPatterns returns the key expressions a validated event obsoletes.
// Exact keys and glob patterns are mixed; the manager picks the cheaper
// delete for each.
func eventPatterns(ev *Event) []string {
	switch ev.Type {
	case EventPriceUpdate:
		// Portfolio valuations price their holdings off the ticker, so
		// any price move stales every performance entry. Coarse, but
		// portfolio_perf is cheap to recompute and short-lived.
		return []string{
			fmt.Sprintf("price:%s", ev.CoinID),
			fmt.Sprintf("analytics:*:%s:*", ev.CoinID),
			"portfolio_perf:*:*",
		}
	case EventSentimentUpdate:
		return []string{
			fmt.Sprintf("sentiment:%s", ev.CoinID),
			fmt.Sprintf("sentiment_trend:%s:*", ev.CoinID),
		}
	case EventPortfolioUpdate:
		return []string{
			fmt.Sprintf("portfolio:%d:%d", ev.UserID, ev.PortfolioID),
			fmt.Sprintf("portfolio_perf:%d:%d", ev.UserID, ev.PortfolioID),
		}
	case EventUserUpdate:
		return userPatterns(ev.UserID)
	}
	return nil
}

// userPatterns covers everything keyed to one account, including its
// sessions. Session IDs embed "user_id=<id>" so the last pattern can find
// them without a reverse index.
func userPatterns(userID int64) []string {
	return []string{
		fmt.Sprintf("user:%d", userID),
		fmt.Sprintf("portfolio:%d:*", userID),
		fmt.Sprintf("portfolio_perf:%d:*", userID),
		fmt.Sprintf("session:*user_id=%d*", userID),
	}
}

// coinPatterns covers everything derived from one coin.
func coinPatterns(coinID string) []string {
	return []string{
		fmt.Sprintf("price:%s", coinID),
		fmt.Sprintf("analytics:*:%s:*", coinID),
		fmt.Sprintf("sentiment:%s", coinID),
		fmt.Sprintf("sentiment_trend:%s:*", coinID),
		fmt.Sprintf("news:%s:*", coinID),
	}
}

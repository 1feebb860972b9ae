package warming

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Schedule configures the periodic warming loops. A zero interval disables
// that category's loop.
type Schedule struct {
	// OnStartup runs a full warming pass before the loops begin, so a
	// freshly restarted instance never serves an empty cache.
	OnStartup bool

	PriceInterval     time.Duration
	AnalyticsInterval time.Duration
	SentimentInterval time.Duration

	// MarketInterval drives both the market summary and trending coins.
	MarketInterval time.Duration
}

func DefaultSchedule() Schedule {
	return Schedule{
		OnStartup:         true,
		PriceInterval:     5 * time.Minute,
		AnalyticsInterval: time.Hour,
		SentimentInterval: 10 * time.Minute,
		MarketInterval:    10 * time.Minute,
	}
}

// Run keeps the configured categories fresh until the context is canceled.
// A failed cycle is logged and retried at the next tick; the loops never
// abort on database or store errors.
func (w *Warmer) Run(ctx context.Context, sched Schedule) error {
	if sched.OnStartup {
		w.WarmAll(ctx)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return w.runLoop(ctx, CategoryPrices, sched.PriceInterval, w.WarmPrices) })
	eg.Go(func() error { return w.runLoop(ctx, CategoryAnalytics, sched.AnalyticsInterval, w.WarmAnalytics) })
	eg.Go(func() error { return w.runLoop(ctx, CategorySentiment, sched.SentimentInterval, w.WarmSentiment) })
	eg.Go(func() error { return w.runLoop(ctx, CategoryMarket, sched.MarketInterval, w.warmMarket) })
	return eg.Wait()
}

func (w *Warmer) warmMarket(ctx context.Context) (int, error) {
	n, err := w.WarmMarketSummary(ctx)
	if err != nil {
		return n, err
	}
	trending, err := w.WarmTrendingCoins(ctx)
	return n + trending, err
}

func (w *Warmer) runLoop(ctx context.Context, category string, interval time.Duration, warm func(context.Context) (int, error)) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := warm(ctx)
			if err != nil {
				// log and try again on the next tick
				warmFailures.WithLabelValues(category).Inc()
				slog.Error("cache warming cycle failed", "category", category, "warmed", n, "err", err)
				continue
			}
			keysWarmed.WithLabelValues(category).Add(float64(n))
			slog.Debug("cache warming cycle complete", "category", category, "warmed", n)
		}
	}
}

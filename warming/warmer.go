// Package warming pre-populates the cache with the entries dashboards hit
// hardest: popular coin prices, their analytics and sentiment, and the
// market-wide summaries. Warming is an optimization pass over the shared
// database; a failed category is logged and skipped, never fatal.
package warming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/coinpulse/coinpulse/cache"
	"github.com/coinpulse/coinpulse/models"
)

// DefaultPopularCoins is the warm set used when no override is configured.
var DefaultPopularCoins = []string{
	"bitcoin",
	"ethereum",
	"binance-coin",
	"cardano",
	"solana",
	"polkadot",
	"litecoin",
	"ripple",
	"dogecoin",
	"avalanche-2",
}

const (
	CategoryPrices    = "prices"
	CategoryAnalytics = "analytics"
	CategorySentiment = "sentiment"
	CategoryMarket    = "market"
	CategoryTrending  = "trending"
)

// warmableMetrics maps stored metric types to their cache entity.
// Correlation is absent: it is keyed by coin pair and there is no warm set
// of pairs worth precomputing.
var warmableMetrics = map[string]cache.EntityType{
	models.MetricMovingAverage: cache.EntityAnalyticsMovingAvg,
	models.MetricVolatility:    cache.EntityAnalyticsVolatility,
}

// PriceSnapshot is the cached representation of a ticker point. The JSON
// field names are shared with the services that read these entries.
type PriceSnapshot struct {
	CoinID    string    `json:"coin_id"`
	PriceUSD  float64   `json:"price_usd"`
	Change24h float64   `json:"change_24h"`
	Volume24h float64   `json:"volume_24h"`
	MarketCap float64   `json:"market_cap"`
	Ts        time.Time `json:"ts"`
}

type MetricSnapshot struct {
	CoinID     string    `json:"coin_id"`
	MetricType string    `json:"metric_type"`
	Period     int       `json:"period"`
	Value      float64   `json:"value"`
	Ts         time.Time `json:"ts"`
}

type SentimentSnapshot struct {
	CoinID      string    `json:"coin_id"`
	Score       float64   `json:"score"`
	Magnitude   float64   `json:"magnitude"`
	SourceCount int       `json:"source_count"`
	Ts          time.Time `json:"ts"`
}

type CoinDelta struct {
	CoinID    string  `json:"coin_id"`
	PriceUSD  float64 `json:"price_usd"`
	Change24h float64 `json:"change_24h"`
}

type MarketSummary struct {
	TotalMarketCap float64     `json:"total_market_cap"`
	TotalVolume24h float64     `json:"total_volume_24h"`
	CoinCount      int         `json:"coin_count"`
	TopGainers     []CoinDelta `json:"top_gainers"`
	TopLosers      []CoinDelta `json:"top_losers"`
	GeneratedAt    time.Time   `json:"generated_at"`
}

type TrendingCoin struct {
	Rank      int     `json:"rank"`
	CoinID    string  `json:"coin_id"`
	PriceUSD  float64 `json:"price_usd"`
	Volume24h float64 `json:"volume_24h"`
	Change24h float64 `json:"change_24h"`
}

// Warmer reads current rows out of the shared database and writes them
// through to the cache under the same keys the read paths use.
type Warmer struct {
	db    *gorm.DB
	cache *cache.Client

	// Coins is the warm set of coin IDs.
	Coins []string

	// Limiter throttles cache writes so a warming pass cannot saturate
	// redis right as every service reconnects to it.
	Limiter *rate.Limiter
}

func NewWarmer(db *gorm.DB, client *cache.Client, coins []string) *Warmer {
	if len(coins) == 0 {
		coins = DefaultPopularCoins
	}
	return &Warmer{
		db:      db,
		cache:   client,
		Coins:   coins,
		Limiter: rate.NewLimiter(rate.Limit(200), 50),
	}
}

// WarmPrices caches the newest ticker point for each popular coin. Coins
// with no price history yet are skipped.
func (w *Warmer) WarmPrices(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("warming").Start(ctx, "WarmPrices")
	defer span.End()

	warmed := 0
	for _, coinID := range w.Coins {
		var row models.Price
		err := w.db.WithContext(ctx).Where("coin_id = ?", coinID).Order("ts DESC").First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return warmed, fmt.Errorf("loading latest price for %s: %w", coinID, err)
		}
		snap := PriceSnapshot{
			CoinID:    row.CoinID,
			PriceUSD:  row.PriceUSD,
			Change24h: row.Change24h,
			Volume24h: row.Volume24h,
			MarketCap: row.MarketCap,
			Ts:        row.Ts,
		}
		if err := w.write(ctx, cache.EntityPrice, cache.Params{"coin_id": coinID}, snap); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

// WarmAnalytics caches the newest metric value per (coin, type, period)
// for the popular coins.
func (w *Warmer) WarmAnalytics(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("warming").Start(ctx, "WarmAnalytics")
	defer span.End()

	var rows []models.AnalyticsMetric
	err := w.db.WithContext(ctx).
		Where("coin_id IN ?", w.Coins).
		Order("ts DESC").
		Limit(2000).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("loading analytics metrics: %w", err)
	}

	type combo struct {
		coin   string
		metric string
		period int
	}
	newest := make(map[combo]models.AnalyticsMetric)
	for _, row := range rows {
		// rows are ordered newest first, so the first sighting wins
		k := combo{row.CoinID, row.MetricType, row.Period}
		if _, ok := newest[k]; !ok {
			newest[k] = row
		}
	}

	warmed := 0
	for _, row := range newest {
		entity, ok := warmableMetrics[row.MetricType]
		if !ok {
			continue
		}
		snap := MetricSnapshot{
			CoinID:     row.CoinID,
			MetricType: row.MetricType,
			Period:     row.Period,
			Value:      row.Value,
			Ts:         row.Ts,
		}
		params := cache.Params{"coin_id": row.CoinID, "period": row.Period}
		if err := w.write(ctx, entity, params, snap); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

// WarmSentiment caches the newest sentiment score per popular coin.
func (w *Warmer) WarmSentiment(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("warming").Start(ctx, "WarmSentiment")
	defer span.End()

	warmed := 0
	for _, coinID := range w.Coins {
		var row models.SentimentScore
		err := w.db.WithContext(ctx).Where("coin_id = ?", coinID).Order("ts DESC").First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return warmed, fmt.Errorf("loading sentiment for %s: %w", coinID, err)
		}
		snap := SentimentSnapshot{
			CoinID:      row.CoinID,
			Score:       row.Score,
			Magnitude:   row.Magnitude,
			SourceCount: row.SourceCount,
			Ts:          row.Ts,
		}
		if err := w.write(ctx, cache.EntitySentiment, cache.Params{"coin_id": coinID}, snap); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

// WarmMarketSummary caches the aggregate market view over the top coins by
// volume. Returns 0 when the database has no price rows yet.
func (w *Warmer) WarmMarketSummary(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("warming").Start(ctx, "WarmMarketSummary")
	defer span.End()

	rows, err := w.latestPrices(ctx, 20, time.Time{})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	summary := MarketSummary{
		CoinCount:   len(rows),
		GeneratedAt: time.Now().UTC(),
	}
	for _, row := range rows {
		summary.TotalMarketCap += row.MarketCap
		summary.TotalVolume24h += row.Volume24h
	}

	sorted := append([]models.Price{}, rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Change24h > sorted[j].Change24h })
	for i := 0; i < len(sorted) && i < 5; i++ {
		summary.TopGainers = append(summary.TopGainers, delta(sorted[i]))
	}
	for i := len(sorted) - 1; i >= 0 && len(summary.TopLosers) < 5; i-- {
		summary.TopLosers = append(summary.TopLosers, delta(sorted[i]))
	}

	if err := w.write(ctx, cache.EntityMarketSummary, nil, summary); err != nil {
		return 0, err
	}
	return 1, nil
}

// trendingWindow bounds trending to coins that have traded recently: a coin
// whose newest ticker row is older than this drops out of the ranking.
const trendingWindow = 24 * time.Hour

// WarmTrendingCoins caches the most active coins of the last 24 hours,
// ranked by volume.
func (w *Warmer) WarmTrendingCoins(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("warming").Start(ctx, "WarmTrendingCoins")
	defer span.End()

	rows, err := w.latestPrices(ctx, 10, time.Now().UTC().Add(-trendingWindow))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	trending := make([]TrendingCoin, 0, len(rows))
	for i, row := range rows {
		trending = append(trending, TrendingCoin{
			Rank:      i + 1,
			CoinID:    row.CoinID,
			PriceUSD:  row.PriceUSD,
			Volume24h: row.Volume24h,
			Change24h: row.Change24h,
		})
	}
	if err := w.write(ctx, cache.EntityMarketTrending, nil, trending); err != nil {
		return 0, err
	}
	return len(trending), nil
}

// WarmAll runs every category once. Categories are isolated: one failing
// leaves the others' results in place, with partial counts reported.
func (w *Warmer) WarmAll(ctx context.Context) map[string]int {
	start := time.Now()
	counts := make(map[string]int)
	for _, cat := range []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{CategoryPrices, w.WarmPrices},
		{CategoryAnalytics, w.WarmAnalytics},
		{CategorySentiment, w.WarmSentiment},
		{CategoryMarket, w.WarmMarketSummary},
		{CategoryTrending, w.WarmTrendingCoins},
	} {
		n, err := cat.fn(ctx)
		counts[cat.name] = n
		keysWarmed.WithLabelValues(cat.name).Add(float64(n))
		if err != nil {
			warmFailures.WithLabelValues(cat.name).Inc()
			slog.Error("cache warming category failed", "category", cat.name, "warmed", n, "err", err)
		}
	}
	warmDuration.Observe(time.Since(start).Seconds())
	slog.Info("cache warming pass complete", "counts", counts, "took", time.Since(start))
	return counts
}

// latestPrices returns the newest ticker point per coin, for the top coins
// by 24h volume. A nonzero since drops coins whose newest row is older.
func (w *Warmer) latestPrices(ctx context.Context, limit int, since time.Time) ([]models.Price, error) {
	newest := w.db.Model(&models.Price{}).
		Select("coin_id, MAX(ts) AS max_ts").
		Group("coin_id")

	q := w.db.WithContext(ctx).
		Joins("JOIN (?) AS newest ON prices.coin_id = newest.coin_id AND prices.ts = newest.max_ts", newest)
	if !since.IsZero() {
		q = q.Where("prices.ts >= ?", since)
	}

	var rows []models.Price
	err := q.Order("volume_24h DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading latest prices: %w", err)
	}
	return rows, nil
}

func (w *Warmer) write(ctx context.Context, entity cache.EntityType, params cache.Params, val any) error {
	if err := w.Limiter.Wait(ctx); err != nil {
		return err
	}
	if err := w.cache.WriteThrough(ctx, entity, params, val); err != nil {
		return fmt.Errorf("warming %s: %w", entity, err)
	}
	return nil
}

func delta(row models.Price) CoinDelta {
	return CoinDelta{CoinID: row.CoinID, PriceUSD: row.PriceUSD, Change24h: row.Change24h}
}

package warming

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coinpulse/coinpulse/cache"
	"github.com/coinpulse/coinpulse/models"
	"github.com/coinpulse/coinpulse/util/cliutil"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dburl := fmt.Sprintf("sqlite://%s", filepath.Join(t.TempDir(), "warm.sqlite"))
	db, err := cliutil.SetupDatabase(dburl, 10)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// seedMarket writes a small market: three coins, bitcoin with an older
// superseded ticker row, and analytics rows including one stale duplicate
// and one correlation row the warmer must skip.
func seedMarket(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)

	prices := []models.Price{
		{CoinID: "bitcoin", PriceUSD: 63000, Change24h: 1.0, Volume24h: 2.9e10, MarketCap: 1.19e12, Ts: now.Add(-time.Hour)},
		{CoinID: "bitcoin", PriceUSD: 64250.5, Change24h: 2.1, Volume24h: 3.0e10, MarketCap: 1.2e12, Ts: now},
		{CoinID: "ethereum", PriceUSD: 3405.25, Change24h: -1.2, Volume24h: 1.5e10, MarketCap: 4.1e11, Ts: now},
		{CoinID: "solana", PriceUSD: 212.4, Change24h: 5.9, Volume24h: 4.0e9, MarketCap: 9.8e10, Ts: now},
	}
	require.NoError(t, db.Create(&prices).Error)

	metrics := []models.AnalyticsMetric{
		{CoinID: "bitcoin", MetricType: models.MetricMovingAverage, Period: 20, Value: 63000, Ts: now.Add(-time.Hour)},
		{CoinID: "bitcoin", MetricType: models.MetricMovingAverage, Period: 20, Value: 64100, Ts: now},
		{CoinID: "bitcoin", MetricType: models.MetricVolatility, Period: 14, Value: 0.042, Ts: now},
		{CoinID: "ethereum", MetricType: models.MetricMovingAverage, Period: 20, Value: 3390.1, Ts: now},
		{CoinID: "bitcoin", MetricType: models.MetricCorrelation, Period: 30, Value: 0.77, Ts: now},
	}
	require.NoError(t, db.Create(&metrics).Error)

	sentiments := []models.SentimentScore{
		{CoinID: "bitcoin", Score: 0.62, Magnitude: 0.8, SourceCount: 42, Ts: now},
		{CoinID: "ethereum", Score: -0.18, Magnitude: 0.3, SourceCount: 17, Ts: now},
	}
	require.NoError(t, db.Create(&sentiments).Error)
}

func newTestWarmer(db *gorm.DB) (*Warmer, *cache.MemStore) {
	store := cache.NewMemStore()
	w := NewWarmer(db, cache.NewClient(store, nil), []string{"bitcoin", "ethereum", "solana"})
	return w, store
}

func decodeKey[T any](t *testing.T, store *cache.MemStore, key string) T {
	t.Helper()
	raw, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, raw, "expected %s to be cached", key)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestWarmPrices(t *testing.T) {
	assert := assert.New(t)
	db := setupTestDB(t)
	seedMarket(t, db)
	w, store := newTestWarmer(db)

	n, err := w.WarmPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(3, n)

	// the newest bitcoin row wins over the superseded one
	snap := decodeKey[PriceSnapshot](t, store, "price:bitcoin")
	assert.Equal(64250.5, snap.PriceUSD)
	assert.Equal(2.1, snap.Change24h)

	sol := decodeKey[PriceSnapshot](t, store, "price:solana")
	assert.Equal(212.4, sol.PriceUSD)
}

func TestWarmAnalytics(t *testing.T) {
	assert := assert.New(t)
	db := setupTestDB(t)
	seedMarket(t, db)
	w, store := newTestWarmer(db)

	// three warmable combos; the correlation row is skipped
	n, err := w.WarmAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(3, n)

	snap := decodeKey[MetricSnapshot](t, store, "analytics:moving_average:bitcoin:20")
	assert.Equal(64100.0, snap.Value)

	vol := decodeKey[MetricSnapshot](t, store, "analytics:volatility:bitcoin:14")
	assert.Equal(0.042, vol.Value)
}

func TestWarmSentiment(t *testing.T) {
	assert := assert.New(t)
	db := setupTestDB(t)
	seedMarket(t, db)
	w, store := newTestWarmer(db)

	n, err := w.WarmSentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(2, n)

	snap := decodeKey[SentimentSnapshot](t, store, "sentiment:bitcoin")
	assert.Equal(0.62, snap.Score)
	assert.Equal(42, snap.SourceCount)
}

func TestWarmMarketSummaryAndTrending(t *testing.T) {
	assert := assert.New(t)
	db := setupTestDB(t)
	seedMarket(t, db)
	w, store := newTestWarmer(db)

	n, err := w.WarmMarketSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(1, n)

	summary := decodeKey[MarketSummary](t, store, "market:summary:global")
	assert.Equal(3, summary.CoinCount)
	assert.InDelta(1.2e12+4.1e11+9.8e10, summary.TotalMarketCap, 1e6)
	require.NotEmpty(t, summary.TopGainers)
	assert.Equal("solana", summary.TopGainers[0].CoinID)
	require.NotEmpty(t, summary.TopLosers)
	assert.Equal("ethereum", summary.TopLosers[0].CoinID)

	n, err = w.WarmTrendingCoins(context.Background())
	require.NoError(t, err)
	assert.Equal(3, n)

	trending := decodeKey[[]TrendingCoin](t, store, "market:trending")
	require.Len(t, trending, 3)
	assert.Equal("bitcoin", trending[0].CoinID)
	assert.Equal(1, trending[0].Rank)
	assert.Equal("solana", trending[2].CoinID)
}

func TestWarmTrendingDropsInactiveCoins(t *testing.T) {
	assert := assert.New(t)
	db := setupTestDB(t)
	w, store := newTestWarmer(db)

	now := time.Now().UTC().Truncate(time.Second)
	prices := []models.Price{
		// delisted coin: top volume, but its newest row is three days old
		{CoinID: "terra-luna", PriceUSD: 0.92, Change24h: -9.5, Volume24h: 9.9e10, MarketCap: 6.0e9, Ts: now.Add(-72 * time.Hour)},
		{CoinID: "ethereum", PriceUSD: 3405.25, Change24h: -1.2, Volume24h: 1.5e10, MarketCap: 4.1e11, Ts: now},
		{CoinID: "solana", PriceUSD: 212.4, Change24h: 5.9, Volume24h: 4.0e9, MarketCap: 9.8e10, Ts: now.Add(-time.Hour)},
	}
	require.NoError(t, db.Create(&prices).Error)

	n, err := w.WarmTrendingCoins(context.Background())
	require.NoError(t, err)
	assert.Equal(2, n)

	trending := decodeKey[[]TrendingCoin](t, store, "market:trending")
	require.Len(t, trending, 2)
	assert.Equal("ethereum", trending[0].CoinID)
	assert.Equal(1, trending[0].Rank)
	assert.Equal("solana", trending[1].CoinID)

	// the market summary has no recency cutoff; stale rows still count
	n, err = w.WarmMarketSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(1, n)
	summary := decodeKey[MarketSummary](t, store, "market:summary:global")
	assert.Equal(3, summary.CoinCount)
}

func TestWarmAllIsolatesFailures(t *testing.T) {
	assert := assert.New(t)
	db := setupTestDB(t)
	seedMarket(t, db)
	w, _ := newTestWarmer(db)

	// sentiment reads now fail; every other category must still land
	require.NoError(t, db.Migrator().DropTable(&models.SentimentScore{}))

	counts := w.WarmAll(context.Background())
	assert.Equal(0, counts[CategorySentiment])
	assert.Equal(3, counts[CategoryPrices])
	assert.Equal(3, counts[CategoryAnalytics])
	assert.Equal(1, counts[CategoryMarket])
	assert.Equal(3, counts[CategoryTrending])
}

func TestWarmAllEmptyDatabase(t *testing.T) {
	assert := assert.New(t)
	db := setupTestDB(t)
	w, store := newTestWarmer(db)

	counts := w.WarmAll(context.Background())
	assert.Len(counts, 5)
	for category, n := range counts {
		assert.Equal(0, n, "expected empty db to warm nothing for %s", category)
	}
	assert.Equal(0, store.Len())
}

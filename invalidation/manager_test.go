package invalidation

import (
	"context"
	"fmt"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpulse/coinpulse/cache"
)

func seedStore(t *testing.T, keys ...string) *cache.MemStore {
	t.Helper()
	store := cache.NewMemStore()
	for _, key := range keys {
		require.NoError(t, store.Set(context.Background(), key, []byte("x"), 0))
	}
	return store
}

func assertPresent(t *testing.T, store *cache.MemStore, keys ...string) {
	t.Helper()
	for _, key := range keys {
		val, err := store.Get(context.Background(), key)
		require.NoError(t, err)
		assert.NotNil(t, val, "expected %s to survive", key)
	}
}

func assertAbsent(t *testing.T, store *cache.MemStore, keys ...string) {
	t.Helper()
	for _, key := range keys {
		val, err := store.Get(context.Background(), key)
		require.NoError(t, err)
		assert.Nil(t, val, "expected %s to be purged", key)
	}
}

func TestPriceUpdateInvalidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t,
		"price:bitcoin",
		"price:ethereum",
		"analytics:moving_average:bitcoin:20",
		"analytics:volatility:bitcoin:14",
		"sentiment:bitcoin",
		"portfolio_perf:42:1",
	)
	mgr := NewManager(store)

	n, err := mgr.OnPriceUpdate(ctx, "bitcoin")
	require.NoError(t, err)
	assert.EqualValues(4, n)

	assertAbsent(t, store,
		"price:bitcoin",
		"analytics:moving_average:bitcoin:20",
		"analytics:volatility:bitcoin:14",
		"portfolio_perf:42:1",
	)
	assertPresent(t, store, "price:ethereum", "sentiment:bitcoin")
}

func TestSentimentUpdateInvalidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t,
		"sentiment:bitcoin",
		"sentiment_trend:bitcoin:7",
		"sentiment_trend:bitcoin:30",
		"sentiment:ethereum",
		"price:bitcoin",
	)
	mgr := NewManager(store)

	n, err := mgr.OnSentimentUpdate(ctx, "bitcoin")
	require.NoError(t, err)
	assert.EqualValues(3, n)

	assertAbsent(t, store, "sentiment:bitcoin", "sentiment_trend:bitcoin:7", "sentiment_trend:bitcoin:30")
	assertPresent(t, store, "sentiment:ethereum", "price:bitcoin")
}

func TestPortfolioUpdateInvalidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t,
		"portfolio:42:7",
		"portfolio_perf:42:7",
		"portfolio:42:8",
		"user:42",
	)
	mgr := NewManager(store)

	n, err := mgr.OnPortfolioUpdate(ctx, 42, 7)
	require.NoError(t, err)
	assert.EqualValues(2, n)

	assertAbsent(t, store, "portfolio:42:7", "portfolio_perf:42:7")
	assertPresent(t, store, "portfolio:42:8", "user:42")
}

func TestUserUpdateInvalidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t,
		"user:42",
		"portfolio_perf:42:1",
		"portfolio_perf:42:2",
		"session:9f3add1c-user_id=42",
		"user:7",
		"session:9c01ab55-user_id=7",
	)
	mgr := NewManager(store)

	n, err := mgr.OnUserUpdate(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(4, n)

	assertAbsent(t, store,
		"user:42",
		"portfolio_perf:42:1",
		"portfolio_perf:42:2",
		"session:9f3add1c-user_id=42",
	)
	assertPresent(t, store, "user:7", "session:9c01ab55-user_id=7")
}

func TestUnknownEventIsNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t, "price:bitcoin")
	mgr := NewManager(store)

	n, err := mgr.Dispatch(ctx, &Event{Type: "coin_listed", CoinID: "bitcoin"})
	assert.NoError(err)
	assert.EqualValues(0, n)
	assertPresent(t, store, "price:bitcoin")
}

func TestIncompleteEventIsDropped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t, "price:bitcoin", "user:42")
	mgr := NewManager(store)

	n, err := mgr.Dispatch(ctx, &Event{Type: EventPriceUpdate})
	assert.NoError(err)
	assert.EqualValues(0, n)

	n, err = mgr.Dispatch(ctx, &Event{Type: EventPortfolioUpdate, UserID: 42})
	assert.NoError(err)
	assert.EqualValues(0, n)

	assertPresent(t, store, "price:bitcoin", "user:42")
}

func TestInvalidateCoin(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t,
		"price:bitcoin",
		"analytics:moving_average:bitcoin:20",
		"sentiment:bitcoin",
		"sentiment_trend:bitcoin:7",
		"news:bitcoin:coindesk",
		"price:ethereum",
	)
	mgr := NewManager(store)

	n, err := mgr.InvalidateCoin(ctx, "bitcoin")
	require.NoError(t, err)
	assert.EqualValues(5, n)
	assertPresent(t, store, "price:ethereum")
}

func TestInvalidateKeyIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t, "price:bitcoin")
	mgr := NewManager(store)

	ok, err := mgr.InvalidateKey(ctx, "price:bitcoin")
	assert.NoError(err)
	assert.True(ok)

	ok, err = mgr.InvalidateKey(ctx, "price:bitcoin")
	assert.NoError(err)
	assert.False(ok)
}

func TestFlushAllGuard(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := seedStore(t, "price:bitcoin", "user:42")
	mgr := NewManager(store)

	assert.ErrorIs(mgr.FlushAll(ctx), ErrFlushDisabled)
	assertPresent(t, store, "price:bitcoin", "user:42")

	mgr.AllowFlush = true
	assert.NoError(mgr.FlushAll(ctx))
	assert.Equal(0, store.Len())
}

// flakyStore fails pattern deletes for one pattern and delegates the rest.
type flakyStore struct {
	cache.Store
	failPattern string
}

func (s *flakyStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	if pattern == s.failPattern {
		return 0, fmt.Errorf("%w: scan %s: connection reset", cache.ErrUnavailable, pattern)
	}
	return s.Store.DeletePattern(ctx, pattern)
}

func TestDispatchContinuesPastPatternFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mem := seedStore(t,
		"price:bitcoin",
		"analytics:moving_average:bitcoin:20",
		"portfolio_perf:42:1",
	)
	mgr := NewManager(&flakyStore{Store: mem, failPattern: "analytics:*:bitcoin:*"})

	// the failed pattern is skipped, the rest of the fanout still runs
	n, err := mgr.OnPriceUpdate(ctx, "bitcoin")
	assert.NoError(err)
	assert.EqualValues(2, n)
	assertAbsent(t, mem, "price:bitcoin", "portfolio_perf:42:1")
	assertPresent(t, mem, "analytics:moving_average:bitcoin:20")
}

func TestEventPatternsCoverKeyTemplates(t *testing.T) {
	assert := assert.New(t)

	priceKey, err := cache.BuildKey(cache.EntityPrice, cache.Params{"coin_id": "bitcoin"})
	require.NoError(t, err)
	maKey, err := cache.BuildKey(cache.EntityAnalyticsMovingAvg, cache.Params{"coin_id": "bitcoin", "period": 20})
	require.NoError(t, err)
	perfKey, err := cache.BuildKey(cache.EntityPortfolioPerf, cache.Params{"user_id": 42, "portfolio_id": 1})
	require.NoError(t, err)

	patterns := eventPatterns(&Event{Type: EventPriceUpdate, CoinID: "bitcoin"})
	require.Len(t, patterns, 3)
	assert.Equal(priceKey, patterns[0])

	matched, err := path.Match(patterns[1], maKey)
	require.NoError(t, err)
	assert.True(matched)

	matched, err = path.Match(patterns[2], perfKey)
	require.NoError(t, err)
	assert.True(matched)
}

func TestAnalyticsPatternCoversCorrelationPairs(t *testing.T) {
	assert := assert.New(t)

	ab, err := cache.BuildKey(cache.EntityAnalyticsCorrelation, cache.Params{
		"coin_1": "bitcoin", "coin_2": "ethereum", "period": 30,
	})
	require.NoError(t, err)
	ba, err := cache.BuildKey(cache.EntityAnalyticsCorrelation, cache.Params{
		"coin_1": "ethereum", "coin_2": "bitcoin", "period": 30,
	})
	require.NoError(t, err)

	// correlation keys are not canonicalized, so the coin wildcard has to
	// catch the coin in either position
	pattern := eventPatterns(&Event{Type: EventPriceUpdate, CoinID: "bitcoin"})[1]
	for _, key := range []string{ab, ba} {
		matched, err := path.Match(pattern, key)
		require.NoError(t, err)
		assert.True(matched, "expected %s to match %s", key, pattern)
	}
}

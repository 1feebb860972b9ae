package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	val, err := store.Get(ctx, "price:bitcoin")
	assert.NoError(err)
	assert.Nil(val)

	assert.NoError(store.Set(ctx, "price:bitcoin", []byte(`{"price_usd":64250.5}`), 10*time.Second))

	val, err = store.Get(ctx, "price:bitcoin")
	assert.NoError(err)
	assert.Equal([]byte(`{"price_usd":64250.5}`), val)
}

func TestMemStoreDeleteIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	assert.NoError(store.Set(ctx, "user:42", []byte("x"), 0))

	ok, err := store.Delete(ctx, "user:42")
	assert.NoError(err)
	assert.True(ok)

	// deleting an absent key reports false and does not fail
	ok, err = store.Delete(ctx, "user:42")
	assert.NoError(err)
	assert.False(ok)
}

func TestMemStoreDeletePattern(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	for _, key := range []string{
		"portfolio_perf:42:1",
		"portfolio_perf:42:2",
		"portfolio_perf:7:1",
		"user:42",
	} {
		require.NoError(t, store.Set(ctx, key, []byte("x"), 0))
	}

	n, err := store.DeletePattern(ctx, "portfolio_perf:42:*")
	assert.NoError(err)
	assert.EqualValues(2, n)

	// unaffected keys survive
	val, err := store.Get(ctx, "portfolio_perf:7:1")
	assert.NoError(err)
	assert.NotNil(val)
	val, err = store.Get(ctx, "user:42")
	assert.NoError(err)
	assert.NotNil(val)

	n, err = store.DeletePattern(ctx, "portfolio_perf:42:*")
	assert.NoError(err)
	assert.EqualValues(0, n)
}

func TestMemStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	now := time.Now()
	store.Now = func() time.Time { return now }

	assert.NoError(store.Set(ctx, "price:bitcoin", []byte("x"), 10*time.Second))
	assert.NoError(store.Set(ctx, "session:abc", []byte("y"), 0)) // no expiry

	val, err := store.Get(ctx, "price:bitcoin")
	assert.NoError(err)
	assert.NotNil(val)

	now = now.Add(11 * time.Second)

	val, err = store.Get(ctx, "price:bitcoin")
	assert.NoError(err)
	assert.Nil(val)

	val, err = store.Get(ctx, "session:abc")
	assert.NoError(err)
	assert.NotNil(val)
}

func TestMemStoreScan(t *testing.T) {
	boom := assert.AnError // capture before the package name is shadowed below
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	for _, key := range []string{"price:bitcoin", "price:ethereum", "sentiment:bitcoin"} {
		require.NoError(t, store.Set(ctx, key, []byte("x"), 0))
	}

	var seen []string
	err := store.Scan(ctx, "price:*", func(key string) error {
		seen = append(seen, key)
		return nil
	})
	assert.NoError(err)
	assert.Equal([]string{"price:bitcoin", "price:ethereum"}, seen)

	// a visit error aborts the iteration and is returned as-is
	err = store.Scan(ctx, "price:*", func(key string) error { return boom })
	assert.ErrorIs(err, boom)
}

func TestMemStoreFlush(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	require.NoError(t, store.Set(ctx, "price:bitcoin", []byte("x"), 0))
	require.NoError(t, store.Set(ctx, "user:42", []byte("y"), 0))

	assert.NoError(store.Flush(ctx))
	assert.Equal(0, store.Len())
}

package invalidation

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscriber(mgr *Manager) *Subscriber {
	return &Subscriber{
		mgr:  mgr,
		seen: expirable.NewLRU[string, struct{}](128, nil, time.Minute),
	}
}

func TestSubscriberHandlesEvent(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "price:bitcoin", "sentiment:bitcoin")
	sub := newTestSubscriber(NewManager(store))

	sub.handle(ctx, []byte(`{"type":"price_update","coin_id":"bitcoin"}`))

	assertAbsent(t, store, "price:bitcoin")
	assertPresent(t, store, "sentiment:bitcoin")
}

func TestSubscriberDropsMalformedPayload(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "price:bitcoin")
	sub := newTestSubscriber(NewManager(store))

	sub.handle(ctx, []byte(`{"type":"price_update",`))

	assertPresent(t, store, "price:bitcoin")
}

func TestSubscriberDedupesBursts(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "price:bitcoin")
	sub := newTestSubscriber(NewManager(store))

	payload := []byte(`{"type":"price_update","coin_id":"bitcoin"}`)
	sub.handle(ctx, payload)
	assertAbsent(t, store, "price:bitcoin")

	// re-seed; a duplicate inside the window must not purge again
	require.NoError(t, store.Set(ctx, "price:bitcoin", []byte("x"), 0))
	sub.handle(ctx, payload)
	assertPresent(t, store, "price:bitcoin")

	// different coin, same window: not a duplicate
	require.NoError(t, store.Set(ctx, "price:ethereum", []byte("x"), 0))
	sub.handle(ctx, []byte(`{"type":"price_update","coin_id":"ethereum"}`))
	assertAbsent(t, store, "price:ethereum")
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// validation runs before the client is touched
	err := Publish(ctx, nil, "", &Event{Type: "bogus"})
	assert.Error(err)

	err = Publish(ctx, nil, "", &Event{Type: EventPriceUpdate})
	assert.Error(err)
}

func TestEventFingerprint(t *testing.T) {
	assert := assert.New(t)

	a := &Event{Type: EventPriceUpdate, CoinID: "bitcoin"}
	b := &Event{Type: EventPriceUpdate, CoinID: "bitcoin"}
	c := &Event{Type: EventSentimentUpdate, CoinID: "bitcoin"}
	d := &Event{Type: EventPriceUpdate, CoinID: "ethereum"}

	assert.Equal(a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(a.Fingerprint(), d.Fingerprint())
}

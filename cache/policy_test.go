package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicyTTLs(t *testing.T) {
	assert := assert.New(t)
	p := DefaultPolicy()

	ttl, err := p.TTLFor(EntityPrice)
	assert.NoError(err)
	assert.Equal(10*time.Second, ttl)

	ttl, err = p.TTLFor(EntityAnalyticsMovingAvg)
	assert.NoError(err)
	assert.Equal(60*time.Second, ttl)

	ttl, err = p.TTLFor(EntitySession)
	assert.NoError(err)
	assert.Equal(24*time.Hour, ttl)

	// every registered entity type has a strictly positive TTL
	for _, entity := range Types() {
		ttl, err := p.TTLFor(entity)
		assert.NoError(err, "entity %s", entity)
		assert.Greater(int64(ttl), int64(0), "entity %s", entity)
	}

	_, err = p.TTLFor("candles")
	assert.ErrorIs(err, ErrUnknownEntityType)
}

func TestEvictionClasses(t *testing.T) {
	assert := assert.New(t)
	p := DefaultPolicy()

	expect := map[EntityType]Class{
		EntityPrice:              ClassHot,
		EntityAnalyticsMovingAvg: ClassHot,
		EntityRateLimit:          ClassHot,
		EntitySentiment:          ClassWarm,
		EntityPortfolio:          ClassWarm,
		EntityUser:               ClassWarm,
		EntityMarketSummary:      ClassWarm,
		EntitySession:            ClassCold,
		EntityTokenBlacklist:     ClassCold,
		EntityCoinsTop:           ClassCold,
		EntityNews:               ClassCold,
	}
	for entity, want := range expect {
		got, err := p.ClassFor(entity)
		assert.NoError(err, "entity %s", entity)
		assert.Equal(want, got, "entity %s", entity)
	}

	_, err := p.ClassFor("candles")
	assert.ErrorIs(err, ErrUnknownEntityType)
}

func TestNewPolicyValidation(t *testing.T) {
	assert := assert.New(t)

	p, err := NewPolicy(map[EntityType]time.Duration{
		EntityPrice: 2 * time.Second,
	})
	assert.NoError(err)
	ttl, err := p.TTLFor(EntityPrice)
	assert.NoError(err)
	assert.Equal(2*time.Second, ttl)

	// an isolated table only knows what it was given
	_, err = p.TTLFor(EntityUser)
	assert.ErrorIs(err, ErrUnknownEntityType)

	_, err = NewPolicy(map[EntityType]time.Duration{EntityPrice: 0})
	assert.Error(err)

	_, err = NewPolicy(map[EntityType]time.Duration{"candles": time.Second})
	assert.ErrorIs(err, ErrUnknownEntityType)
}

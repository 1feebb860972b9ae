package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the redis pub/sub channel the coinpulse services
// publish invalidation events on.
const DefaultChannel = "coinpulse:invalidation"

const (
	dedupeCapacity = 8192
	dedupeWindow   = time.Second
)

// Subscriber consumes invalidation events from redis pub/sub and applies
// them through a Manager. Duplicate events inside a short window are
// suppressed: several services observing the same upstream change tend to
// publish the same event within milliseconds of each other, and replaying
// an identical purge is pure load.
type Subscriber struct {
	client  *redis.Client
	channel string
	mgr     *Manager
	seen    *expirable.LRU[string, struct{}]
}

func NewSubscriber(client *redis.Client, channel string, mgr *Manager) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{
		client:  client,
		channel: channel,
		mgr:     mgr,
		seen:    expirable.NewLRU[string, struct{}](dedupeCapacity, nil, dedupeWindow),
	}
}

// Run blocks consuming events until the context is canceled. Redis pub/sub
// is at-most-once; anything missed while disconnected is covered by TTL
// expiry, so there is no replay on reconnect.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// confirm the subscription before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.channel, err)
	}
	slog.Info("invalidation subscriber running", "channel", s.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", s.channel)
			}
			s.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		eventsMalformed.Inc()
		slog.Warn("dropping undecodable invalidation payload", "err", err)
		return
	}
	fp := ev.Fingerprint()
	if _, dup := s.seen.Get(fp); dup {
		eventsDeduped.Inc()
		return
	}
	s.seen.Add(fp, struct{}{})
	if _, err := s.mgr.Dispatch(ctx, &ev); err != nil {
		slog.Error("invalidation dispatch failed", "type", ev.Type, "err", err)
	}
}

// Publish emits an invalidation event for every subscribed instance,
// this one included.
func Publish(ctx context.Context, client *redis.Client, channel string, ev *Event) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}
	return nil
}

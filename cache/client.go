package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Client bundles the store with the TTL policy and owns value
// serialization. Values are cached as JSON; a cached blob that no longer
// decodes (schema drift across deploys) counts as a miss and is recomputed,
// never surfaced as an error.
type Client struct {
	Store  Store
	Policy *Policy
}

func NewClient(store Store, policy *Policy) *Client {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Client{Store: store, Policy: policy}
}

// Fetch is the read-through path: return the cached value for the derived
// key, or compute, best-effort cache, and return. The computation runs on
// a miss, on a decode failure, and when the backend is unreachable; the
// set after compute is best-effort and its failure is logged, not
// returned.
//
// Concurrent misses on the same key each invoke compute independently;
// there is no single-flight here. Computations are idempotent and
// side-effect free, so a stampede costs duplicate work, nothing worse.
func Fetch[T any](ctx context.Context, c *Client, entity EntityType, params Params, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := BuildKey(entity, params)
	if err != nil {
		return zero, err
	}
	ttl, err := c.Policy.TTLFor(entity)
	if err != nil {
		return zero, err
	}

	ctx, span := otel.Tracer("cache").Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("entity", string(entity)))

	raw, err := c.Store.Get(ctx, key)
	if err != nil {
		readFailures.WithLabelValues(string(entity)).Inc()
		slog.Warn("cache read failed, computing directly", "entity", entity, "key", key, "err", err)
	}
	if raw != nil {
		var cached T
		if derr := json.Unmarshal(raw, &cached); derr == nil {
			fetchHits.WithLabelValues(string(entity)).Inc()
			return cached, nil
		} else {
			decodeFailures.WithLabelValues(string(entity)).Inc()
			slog.Debug("cached value failed to decode, treating as miss", "entity", entity, "key", key, "err", derr)
		}
	}
	fetchMisses.WithLabelValues(string(entity)).Inc()

	fresh, err := compute(ctx)
	if err != nil {
		return zero, err
	}
	if err := c.put(ctx, key, ttl, fresh); err != nil {
		writeFailures.WithLabelValues(string(entity)).Inc()
		slog.Error("cache write failed", "entity", entity, "key", key, "err", err)
	}
	return fresh, nil
}

// WriteThrough caches a freshly computed value without a preceding read.
// The warmer uses this to populate hot keys ahead of demand; mutation
// handlers may use it to refresh a slot they just recomputed.
func (c *Client) WriteThrough(ctx context.Context, entity EntityType, params Params, val any) error {
	key, err := BuildKey(entity, params)
	if err != nil {
		return err
	}
	ttl, err := c.Policy.TTLFor(entity)
	if err != nil {
		return err
	}
	if err := c.put(ctx, key, ttl, val); err != nil {
		writeFailures.WithLabelValues(string(entity)).Inc()
		return err
	}
	return nil
}

func (c *Client) put(ctx context.Context, key string, ttl time.Duration, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return c.Store.Set(ctx, key, raw, ttl)
}

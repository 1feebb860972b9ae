package invalidation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/coinpulse/coinpulse/cache"
)

var ErrFlushDisabled = errors.New("cache flush is disabled on this instance")

// Manager applies invalidations to a single cache store. It holds no state
// beyond its store handle; every operation is safe for concurrent use.
type Manager struct {
	store cache.Store

	// AllowFlush gates FlushAll. Off by default so a stray admin call
	// cannot empty the keyspace in production.
	AllowFlush bool
}

func NewManager(store cache.Store) *Manager {
	return &Manager{store: store}
}

// Dispatch fans one event out to its key patterns. Unknown or incomplete
// events are dropped with a warning; the count of removed keys is returned.
// A store failure mid-fanout is logged and skipped, so the count may be
// partial. Whatever survives ages out on TTL.
func (m *Manager) Dispatch(ctx context.Context, ev *Event) (int64, error) {
	ctx, span := otel.Tracer("invalidation").Start(ctx, "Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", string(ev.Type)))

	if err := ev.Validate(); err != nil {
		eventsDropped.WithLabelValues(dropReason(ev)).Inc()
		slog.Warn("dropping invalidation event", "type", ev.Type, "err", err)
		return 0, nil
	}

	var total int64
	for _, expr := range eventPatterns(ev) {
		n, err := m.purge(ctx, expr)
		total += n
		if err != nil {
			patternFailures.Inc()
			slog.Warn("cache invalidation incomplete", "event", ev.Type, "pattern", expr, "err", err)
		}
	}
	eventsHandled.WithLabelValues(string(ev.Type)).Inc()
	keysInvalidated.WithLabelValues(string(StrategyEvent)).Add(float64(total))
	span.SetAttributes(attribute.Int64("keys.invalidated", total))
	return total, nil
}

func dropReason(ev *Event) string {
	switch ev.Type {
	case EventPriceUpdate, EventSentimentUpdate, EventPortfolioUpdate, EventUserUpdate:
		return "malformed"
	default:
		return "unknown"
	}
}

func (m *Manager) OnPriceUpdate(ctx context.Context, coinID string) (int64, error) {
	return m.Dispatch(ctx, &Event{Type: EventPriceUpdate, CoinID: coinID})
}

func (m *Manager) OnSentimentUpdate(ctx context.Context, coinID string) (int64, error) {
	return m.Dispatch(ctx, &Event{Type: EventSentimentUpdate, CoinID: coinID})
}

func (m *Manager) OnPortfolioUpdate(ctx context.Context, userID, portfolioID int64) (int64, error) {
	return m.Dispatch(ctx, &Event{Type: EventPortfolioUpdate, UserID: userID, PortfolioID: portfolioID})
}

func (m *Manager) OnUserUpdate(ctx context.Context, userID int64) (int64, error) {
	return m.Dispatch(ctx, &Event{Type: EventUserUpdate, UserID: userID})
}

// InvalidateKey removes one exact key. Removing an absent key is not an
// error; the bool reports whether anything was there.
func (m *Manager) InvalidateKey(ctx context.Context, key string) (bool, error) {
	ok, err := m.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		keysInvalidated.WithLabelValues(string(StrategyManual)).Inc()
	}
	return ok, nil
}

// InvalidatePattern removes every key matching a glob expression.
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) (int64, error) {
	n, err := m.store.DeletePattern(ctx, pattern)
	keysInvalidated.WithLabelValues(string(StrategyManual)).Add(float64(n))
	return n, err
}

// InvalidateCoin drops every entry derived from one coin. Unlike event
// dispatch this is an operator action, so the first store error aborts the
// sweep and is returned alongside the partial count.
func (m *Manager) InvalidateCoin(ctx context.Context, coinID string) (int64, error) {
	return m.purgeAll(ctx, coinPatterns(coinID))
}

// InvalidateUser drops every entry keyed to one account, sessions included.
func (m *Manager) InvalidateUser(ctx context.Context, userID int64) (int64, error) {
	return m.purgeAll(ctx, userPatterns(userID))
}

// FlushAll empties the entire keyspace. Refused unless AllowFlush is set.
func (m *Manager) FlushAll(ctx context.Context) error {
	if !m.AllowFlush {
		return ErrFlushDisabled
	}
	if err := m.store.Flush(ctx); err != nil {
		return err
	}
	flushes.Inc()
	slog.Warn("flushed entire cache keyspace")
	return nil
}

// purge removes one expression, using a direct delete when it has no glob
// metacharacters and a scan-and-delete otherwise.
func (m *Manager) purge(ctx context.Context, expr string) (int64, error) {
	if !strings.ContainsAny(expr, "*?[") {
		ok, err := m.store.Delete(ctx, expr)
		if err != nil {
			return 0, err
		}
		if ok {
			return 1, nil
		}
		return 0, nil
	}
	return m.store.DeletePattern(ctx, expr)
}

func (m *Manager) purgeAll(ctx context.Context, patterns []string) (int64, error) {
	var total int64
	for _, expr := range patterns {
		n, err := m.purge(ctx, expr)
		total += n
		if err != nil {
			keysInvalidated.WithLabelValues(string(StrategyManual)).Add(float64(total))
			return total, err
		}
	}
	keysInvalidated.WithLabelValues(string(StrategyManual)).Add(float64(total))
	return total, nil
}

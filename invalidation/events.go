// Package invalidation maps domain change events to the cache entries they
// obsolete and purges them. Purges are fire-and-forget: a failed or partial
// purge is logged and counted, never retried, and never surfaced to the
// code path that produced the change. Stale entries left behind age out on
// their TTLs.
package invalidation

import (
	"fmt"
)

type EventType string

const (
	EventPriceUpdate     EventType = "price_update"
	EventSentimentUpdate EventType = "sentiment_update"
	EventPortfolioUpdate EventType = "portfolio_update"
	EventUserUpdate      EventType = "user_update"
)

// Event is a change notification published by one of the coinpulse
// services. Only the attributes relevant to the event type are set.
type Event struct {
	Type        EventType `json:"type"`
	CoinID      string    `json:"coin_id,omitempty"`
	UserID      int64     `json:"user_id,omitempty"`
	PortfolioID int64     `json:"portfolio_id,omitempty"`
}

func (ev *Event) Validate() error {
	switch ev.Type {
	case EventPriceUpdate, EventSentimentUpdate:
		if ev.CoinID == "" {
			return fmt.Errorf("%s event missing coin_id", ev.Type)
		}
	case EventPortfolioUpdate:
		if ev.UserID == 0 {
			return fmt.Errorf("%s event missing user_id", ev.Type)
		}
		if ev.PortfolioID == 0 {
			return fmt.Errorf("%s event missing portfolio_id", ev.Type)
		}
	case EventUserUpdate:
		if ev.UserID == 0 {
			return fmt.Errorf("%s event missing user_id", ev.Type)
		}
	default:
		return fmt.Errorf("unknown event type: %q", ev.Type)
	}
	return nil
}

// Fingerprint identifies an event for duplicate suppression. Two events
// with the same fingerprint purge the same keys, so replaying one within
// the dedupe window is a no-op.
func (ev *Event) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%d|%d", ev.Type, ev.CoinID, ev.UserID, ev.PortfolioID)
}

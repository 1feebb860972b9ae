package ratelimit

import (
	"fmt"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/puzpuzpuz/xsync/v3"
)

// LocalLimiter enforces per-process limits with in-memory sliding windows,
// for paths that cannot afford a redis round-trip per request. Each
// (endpoint, user) pair gets its own window, created on first use.
type LocalLimiter struct {
	window time.Duration
	limit  int64

	limiters *xsync.MapOf[string, *slidingwindow.Limiter]
}

func NewLocalLimiter(window time.Duration, limit int64) *LocalLimiter {
	return &LocalLimiter{
		window:   window,
		limit:    limit,
		limiters: xsync.NewMapOf[string, *slidingwindow.Limiter](),
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func (l *LocalLimiter) Allow(endpoint string, userID int64) bool {
	key := fmt.Sprintf("%s:%d", endpoint, userID)
	lim, _ := l.limiters.LoadOrCompute(key, func() *slidingwindow.Limiter {
		lim, _ := slidingwindow.NewLimiter(l.window, l.limit, windowFunc)
		return lim
	})
	if !lim.Allow() {
		denied.WithLabelValues(endpoint).Inc()
		return false
	}
	return true
}

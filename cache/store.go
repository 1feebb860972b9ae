package cache

import (
	"context"
	"time"
)

// Store is the single component with physical access to the cache backend.
// Everything else on the platform reads and writes cached state through
// this interface; no component holds its own connection or keeps local
// copies. Writes are plain overwrites with last-write-wins semantics, no
// per-key locking anywhere.
//
// Get returns (nil, nil) on a miss. Methods return an error wrapping
// ErrUnavailable on connection-level failure, which every consumer treats
// as a miss rather than a failure of the owning operation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites unconditionally. The TTL is always supplied by the
	// caller (normally from the Policy), never left to a backend default.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes a single key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePattern removes every key matching a redis-style glob using
	// incremental cursor iteration, never a blocking full-keyspace sweep.
	// On mid-iteration failure the count of keys already removed is
	// returned alongside the error.
	DeletePattern(ctx context.Context, pattern string) (int64, error)

	// Scan streams matching keys to visit, with no ordering guarantee. A
	// non-nil error from visit aborts the iteration and is returned as-is.
	Scan(ctx context.Context, pattern string, visit func(key string) error) error

	// Flush drops the entire cache namespace. Operational tooling only.
	Flush(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

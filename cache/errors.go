package cache

import "errors"

var (
	// ErrInvalidKeySpec indicates a caller bug: missing, extra, or
	// malformed parameters passed to BuildKey. Parameters are statically
	// determined by entity type, never by user input, so this must fail
	// loudly rather than silently mis-key.
	ErrInvalidKeySpec = errors.New("invalid cache key spec")

	// ErrUnknownEntityType indicates an entity type absent from the key
	// table or the TTL policy.
	ErrUnknownEntityType = errors.New("unknown cache entity type")

	// ErrUnavailable wraps connection-level backend failures, including
	// per-call timeouts. Consumers treat it as a cache miss and fall back
	// to the authoritative path.
	ErrUnavailable = errors.New("cache unavailable")
)

// Package cache implements the shared caching layer for the coinpulse
// platform: canonical key construction, the per-entity TTL policy, the
// redis store adapter, and the read-through helper service code wraps
// around expensive computations.
//
// The cache is strictly an accelerator. Every path through this package
// degrades to the backing computation or store when the backend is
// unreachable; nothing here may become a correctness dependency.
package cache

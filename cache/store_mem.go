package cache

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-process Store for tests and backend-less dev runs. It
// mirrors the redis adapter's observable semantics: TTL expiry, glob
// pattern deletes, idempotent single-key deletes.
type MemStore struct {
	// Now is the clock used for expiry. Tests may replace it to step time
	// forward without sleeping.
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	val       []byte
	expiresAt time.Time // zero means no expiry
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		Now:     time.Now,
		entries: make(map[string]memEntry),
	}
}

func (s *MemStore) expired(e memEntry) bool {
	return !e.expiresAt.IsZero() && s.Now().After(e.expiresAt)
}

func (s *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.expired(e) {
		delete(s.entries, key)
		return nil, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

func (s *MemStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expiresAt = s.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	delete(s.entries, key)
	return !s.expired(e), nil
}

// matchKey applies redis-style glob matching. path.Match has the same *,
// ?, and character-class syntax; its '/' special case is moot because
// parameter validation keeps slashes out of keys.
func matchKey(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}

func (s *MemStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, e := range s.entries {
		if !matchKey(pattern, key) {
			continue
		}
		live := !s.expired(e)
		delete(s.entries, key)
		if live {
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemStore) Scan(ctx context.Context, pattern string, visit func(key string) error) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for key, e := range s.entries {
		if s.expired(e) || !matchKey(pattern, key) {
			continue
		}
		keys = append(keys, key)
	}
	s.mu.Unlock()

	sort.Strings(keys)
	for _, key := range keys {
		if err := visit(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memEntry)
	return nil
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }

// Len reports the number of live entries.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !s.expired(e) {
			n++
		}
	}
	return n
}

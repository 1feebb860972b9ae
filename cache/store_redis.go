package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultOpTimeout   = 3 * time.Second
	defaultScanTimeout = 30 * time.Second
	defaultScanPage    = 250
)

// RedisStore implements Store against the shared redis backend.
//
// Point operations run under OpTimeout; pattern operations, which may walk
// a large keyspace, run under the looser ScanTimeout. Both bounds exist so
// a degraded backend cannot stall the request that owns the call.
type RedisStore struct {
	Client *redis.Client

	OpTimeout   time.Duration
	ScanTimeout time.Duration
	ScanPage    int64
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the cache backend.
//
// `redisURL` contains all the redis connection config options.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("could not configure cache backend: %w", err)
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, fmt.Errorf("could not connect to cache backend: %w", err)
	}
	return &RedisStore{
		Client:      rdb,
		OpTimeout:   defaultOpTimeout,
		ScanTimeout: defaultScanTimeout,
		ScanPage:    defaultScanPage,
	}, nil
}

func (s *RedisStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.OpTimeout)
}

func (s *RedisStore) scanCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.ScanTimeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	storeOps.WithLabelValues("get").Inc()
	val, err := s.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	storeOps.WithLabelValues("set").Inc()
	if err := s.Client.Set(ctx, key, val, ttl).Err(); err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	storeOps.WithLabelValues("delete").Inc()
	n, err := s.Client.Del(ctx, key).Result()
	if err != nil {
		storeErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	ctx, span := otel.Tracer("cache").Start(ctx, "DeletePattern")
	defer span.End()
	span.SetAttributes(attribute.String("pattern", pattern))

	ctx, cancel := s.scanCtx(ctx)
	defer cancel()

	storeOps.WithLabelValues("delete_pattern").Inc()
	var deleted int64
	var cursor uint64
	for {
		keys, next, err := s.Client.Scan(ctx, cursor, pattern, s.ScanPage).Result()
		if err != nil {
			storeErrors.WithLabelValues("delete_pattern").Inc()
			return deleted, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, pattern, err)
		}
		if len(keys) > 0 {
			n, err := s.Client.Del(ctx, keys...).Result()
			deleted += n
			if err != nil {
				storeErrors.WithLabelValues("delete_pattern").Inc()
				return deleted, fmt.Errorf("%w: delete batch for %s: %v", ErrUnavailable, pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			span.SetAttributes(attribute.Int64("deleted", deleted))
			return deleted, nil
		}
	}
}

func (s *RedisStore) Scan(ctx context.Context, pattern string, visit func(key string) error) error {
	ctx, cancel := s.scanCtx(ctx)
	defer cancel()

	storeOps.WithLabelValues("scan").Inc()
	var cursor uint64
	for {
		keys, next, err := s.Client.Scan(ctx, cursor, pattern, s.ScanPage).Result()
		if err != nil {
			storeErrors.WithLabelValues("scan").Inc()
			return fmt.Errorf("%w: scan %s: %v", ErrUnavailable, pattern, err)
		}
		for _, key := range keys {
			if err := visit(key); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) Flush(ctx context.Context) error {
	ctx, span := otel.Tracer("cache").Start(ctx, "Flush")
	defer span.End()

	ctx, cancel := s.scanCtx(ctx)
	defer cancel()

	storeOps.WithLabelValues("flush").Inc()
	if err := s.Client.FlushDB(ctx).Err(); err != nil {
		storeErrors.WithLabelValues("flush").Inc()
		return fmt.Errorf("%w: flush: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

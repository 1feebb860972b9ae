// Package sessions caches login sessions and the revoked-token blacklist
// for the user service.
//
// Session state lives only in redis: losing the keyspace logs everyone
// out, which the platform accepts, so nothing here is a source of truth
// either. An in-process LRU tier (provided by the redis client library)
// absorbs the hot path, the session check every authenticated request
// performs.
//
// Account-wide purges happen as redis pattern deletes and cannot reach
// the local tier of other processes, so the local TTL is kept short; it
// bounds how long a swept session can still look valid.
package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	rcache "github.com/go-redis/cache/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/coinpulse/coinpulse/cache"
)

// localTTL bounds the in-process tier. It is deliberately much shorter
// than the session TTL; see the package comment.
const localTTL = time.Minute

// Session is the cached login state for one account.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cache stores sessions and blacklisted tokens in redis with a small
// in-process tier in front.
type Cache struct {
	SessionTTL   time.Duration
	BlacklistTTL time.Duration

	data *rcache.Cache
}

// NewCache connects to redis and returns a session cache. TTLs come from
// the policy (nil means defaults); lruSize is the in-process tier
// capacity, 10000 is a reasonable default.
func NewCache(redisURL string, policy *cache.Policy, lruSize int) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("could not configure redis session cache: %w", err)
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis session cache: %w", err)
	}
	return newCache(rdb, policy, lruSize)
}

// NewLocalCache is a process-local variant for tests and development; it
// drops the redis tier entirely.
func NewLocalCache(policy *cache.Policy, lruSize int) (*Cache, error) {
	return newCache(nil, policy, lruSize)
}

func newCache(rdb *redis.Client, policy *cache.Policy, lruSize int) (*Cache, error) {
	if policy == nil {
		policy = cache.DefaultPolicy()
	}
	sessionTTL, err := policy.TTLFor(cache.EntitySession)
	if err != nil {
		return nil, err
	}
	blacklistTTL, err := policy.TTLFor(cache.EntityTokenBlacklist)
	if err != nil {
		return nil, err
	}
	opts := &rcache.Options{
		LocalCache: rcache.NewTinyLFU(lruSize, localTTL),
	}
	if rdb != nil {
		opts.Redis = rdb
	}
	return &Cache{
		SessionTTL:   sessionTTL,
		BlacklistTTL: blacklistTTL,
		data:         rcache.New(opts),
	}, nil
}

// NewSessionID mints a session identifier with the owning account embedded
// as a "user_id=" suffix. Account-wide invalidation finds sessions by key
// pattern, so ownership has to be recoverable from the key itself.
func NewSessionID(userID int64) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-user_id=%d", hex.EncodeToString(buf), userID), nil
}

// TokenFingerprint names a JWT in the blacklist without storing the token
// itself.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func sessionKey(sessionID string) (string, error) {
	return cache.BuildKey(cache.EntitySession, cache.Params{"session_id": sessionID})
}

func tokenKey(token string) (string, error) {
	return cache.BuildKey(cache.EntityTokenBlacklist, cache.Params{"token_hash": TokenFingerprint(token)})
}

func (c *Cache) PutSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session missing ID")
	}
	key, err := sessionKey(sess.ID)
	if err != nil {
		return err
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = sess.CreatedAt.Add(c.SessionTTL)
	}
	if err := c.data.Set(&rcache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: sess,
		TTL:   c.SessionTTL,
	}); err != nil {
		return fmt.Errorf("session cache write failed: %w", err)
	}
	sessionWrites.Inc()
	return nil
}

// GetSession returns nil for unknown or expired sessions.
func (c *Cache) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	key, err := sessionKey(sessionID)
	if err != nil {
		return nil, err
	}
	var sess Session
	err = c.data.Get(ctx, key, &sess)
	if err == rcache.ErrCacheMiss {
		sessionMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session cache read failed: %w", err)
	}
	sessionHits.Inc()
	return &sess, nil
}

// DropSession removes one session. Dropping an absent session is not an
// error.
func (c *Cache) DropSession(ctx context.Context, sessionID string) error {
	key, err := sessionKey(sessionID)
	if err != nil {
		return err
	}
	err = c.data.Delete(ctx, key)
	if err == rcache.ErrCacheMiss {
		return nil
	}
	return err
}

// BlacklistToken records a revoked JWT until it would have expired anyway:
// the TTL is the token's remaining lifetime capped at the policy TTL. A
// token without a readable exp claim is held for the full policy TTL.
func (c *Cache) BlacklistToken(ctx context.Context, token string) error {
	key, err := tokenKey(token)
	if err != nil {
		return err
	}
	ttl := c.BlacklistTTL
	if remaining, ok := tokenRemaining(token); ok {
		if remaining < ttl {
			ttl = remaining
		}
		if ttl < time.Minute {
			// keep already-expired tokens briefly to cover clock skew
			ttl = time.Minute
		}
	}
	if err := c.data.Set(&rcache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: true,
		TTL:   ttl,
	}); err != nil {
		return fmt.Errorf("token blacklist write failed: %w", err)
	}
	blacklistWrites.Inc()
	return nil
}

// IsTokenBlacklisted reports whether a token has been revoked. On a cache
// failure the error is returned and the caller decides whether to fail
// open or closed.
func (c *Cache) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	key, err := tokenKey(token)
	if err != nil {
		return false, err
	}
	var revoked bool
	err = c.data.Get(ctx, key, &revoked)
	if err == rcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("token blacklist read failed: %w", err)
	}
	return revoked, nil
}

// tokenRemaining reads the exp claim without verifying the signature. The
// blacklist does not care whether the token verifies, only when it dies.
func tokenRemaining(token string) (time.Duration, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return time.Until(exp.Time), true
}

package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewLocalCache(nil, 1000)
	require.NoError(t, err)
	return c
}

func signTestToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestSessionRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := newTestCache(t)

	id, err := NewSessionID(42)
	require.NoError(t, err)

	require.NoError(t, c.PutSession(ctx, &Session{ID: id, UserID: 42}))

	sess, err := c.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(id, sess.ID)
	assert.EqualValues(42, sess.UserID)
	assert.False(sess.CreatedAt.IsZero())
	assert.True(sess.ExpiresAt.After(sess.CreatedAt))

	// unknown session is a miss, not an error
	other, err := c.GetSession(ctx, "deadbeefdeadbeefdeadbeefdeadbeef-user_id=7")
	assert.NoError(err)
	assert.Nil(other)
}

func TestDropSession(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := newTestCache(t)

	id, err := NewSessionID(42)
	require.NoError(t, err)
	require.NoError(t, c.PutSession(ctx, &Session{ID: id, UserID: 42}))

	assert.NoError(c.DropSession(ctx, id))
	sess, err := c.GetSession(ctx, id)
	assert.NoError(err)
	assert.Nil(sess)

	// dropping again is fine
	assert.NoError(c.DropSession(ctx, id))
}

func TestSessionIDEmbedsOwner(t *testing.T) {
	assert := assert.New(t)

	id, err := NewSessionID(42)
	require.NoError(t, err)
	assert.True(strings.HasSuffix(id, "-user_id=42"), "got %s", id)
	assert.Len(strings.SplitN(id, "-", 2)[0], 32)

	again, err := NewSessionID(42)
	require.NoError(t, err)
	assert.NotEqual(id, again)
}

func TestBlacklistToken(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := newTestCache(t)

	token := signTestToken(t, time.Now().Add(time.Hour))
	other := signTestToken(t, time.Now().Add(2*time.Hour))

	revoked, err := c.IsTokenBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.False(revoked)

	require.NoError(t, c.BlacklistToken(ctx, token))

	revoked, err = c.IsTokenBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.True(revoked)

	revoked, err = c.IsTokenBlacklisted(ctx, other)
	require.NoError(t, err)
	assert.False(revoked)
}

func TestBlacklistOpaqueToken(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := newTestCache(t)

	// not a JWT at all; held for the full policy TTL
	require.NoError(t, c.BlacklistToken(ctx, "opaque-legacy-token"))
	revoked, err := c.IsTokenBlacklisted(ctx, "opaque-legacy-token")
	require.NoError(t, err)
	assert.True(revoked)
}

func TestTokenRemaining(t *testing.T) {
	assert := assert.New(t)

	remaining, ok := tokenRemaining(signTestToken(t, time.Now().Add(time.Hour)))
	assert.True(ok)
	assert.Greater(int64(remaining), int64(50*time.Minute))
	assert.LessOrEqual(int64(remaining), int64(time.Hour))

	_, ok = tokenRemaining("not-a-jwt")
	assert.False(ok)
}

func TestTokenFingerprint(t *testing.T) {
	assert := assert.New(t)

	a := TokenFingerprint("token-a")
	b := TokenFingerprint("token-b")
	assert.Len(a, 64)
	assert.NotEqual(a, b)
	assert.Equal(a, TokenFingerprint("token-a"))
}

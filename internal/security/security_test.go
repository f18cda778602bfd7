package security

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 5, 6, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "keys are limited independently")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("u1"), "tokens refill after the window")

	now = now.Add(5 * time.Minute)
	rl.prune()
	rl.mu.RLock()
	assert.Empty(t, rl.visitors)
	rl.mu.RUnlock()

	rl.Stop()
	rl.Stop()
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Stop()
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("u1"))
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", GetClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", GetClientIP(r))
}

func TestTokenVerifier(t *testing.T) {
	v, err := NewTokenVerifier("s3cret", "codequest")
	require.NoError(t, err)

	token, err := v.Sign("u1", true, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.True(t, claims.Admin)

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenVerifier("other", "codequest")
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewTokenVerifier("s3cret", "someone-else")
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := v.Sign("u1", false, -time.Minute)
		require.NoError(t, err)
		_, err = v.Verify(expired)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("missing subject", func(t *testing.T) {
		noSub, err := v.Sign("", false, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(noSub)
		assert.Error(t, err)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := NewTokenVerifier("", "")
		assert.Error(t, err)
	})
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/petfeeder/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestVerifyLimiterDeniesAfterBurst(t *testing.T) {
	_, client := newRedis(t)
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, VerifyRate: 0.01, VerifyBurst: 2}}

	limiter, err := NewVerifyLimiter(cfg, client)
	require.NoError(t, err)
	require.True(t, limiter.Enabled())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "198.51.100.7")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := limiter.Allow(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := limiter.Allow(ctx, "198.51.100.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestVerifyLimiterDisabled(t *testing.T) {
	limiter, err := NewVerifyLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestVerifyLimiterRejectsBadConfig(t *testing.T) {
	_, client := newRedis(t)
	_, err := NewVerifyLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}, client)
	assert.ErrorIs(t, err, ErrInvalidBucket)
}

func TestTokenBucketValidatesArguments(t *testing.T) {
	_, client := newRedis(t)
	bucket := NewTokenBucket(client)

	_, err := bucket.Take(context.Background(), "", Bucket{Rate: 1, Burst: 1})
	assert.Error(t, err)
	_, err = bucket.Take(context.Background(), "k", Bucket{Burst: 1})
	assert.ErrorIs(t, err, ErrInvalidBucket)
	assert.Nil(t, NewTokenBucket(nil))

	var disabled *TokenBucket
	_, err = disabled.Take(context.Background(), "k", Bucket{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)
}

func TestReplayGuardClaimsOnce(t *testing.T) {
	mr, client := newRedis(t)
	guard := NewReplayGuard(config.Config{Captcha: config.CaptchaConfig{ReplayTTLSecs: 60}}, client)
	ctx := context.Background()

	claim, err := guard.Claim(ctx, "0.token-abc")
	require.NoError(t, err)
	assert.NotEmpty(t, claim)

	_, err = guard.Claim(ctx, "0.token-abc")
	assert.ErrorIs(t, err, ErrTokenReplayed)

	key := tokenKey("0.token-abc")
	assert.True(t, mr.Exists(key))
	assert.NotContains(t, key, "token-abc")
	assert.Equal(t, 60*time.Second, mr.TTL(key))

	mr.FastForward(61 * time.Second)
	_, err = guard.Claim(ctx, "0.token-abc")
	assert.NoError(t, err)
}

func TestReplayGuardReleaseOnlyOwnClaim(t *testing.T) {
	mr, client := newRedis(t)
	guard := NewReplayGuard(config.Config{}, client)
	ctx := context.Background()

	claim, err := guard.Claim(ctx, "tok")
	require.NoError(t, err)

	require.NoError(t, guard.Release(ctx, "tok", "someone-else"))
	assert.True(t, mr.Exists(tokenKey("tok")))

	require.NoError(t, guard.Release(ctx, "tok", claim))
	assert.False(t, mr.Exists(tokenKey("tok")))
}

func TestReplayGuardDisabled(t *testing.T) {
	var guard *ReplayGuard
	claim, err := guard.Claim(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, claim)
	assert.NoError(t, guard.Release(context.Background(), "tok", claim))
}

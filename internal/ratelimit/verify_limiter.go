package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/petfeeder/internal/config"
)

const keyVerifyIP = "captcha:verify:ip:%s"

// VerifyLimiter throttles POST /api/verify-captcha per client IP.
type VerifyLimiter struct {
	bucket *TokenBucket
	limit  Bucket
}

// NewVerifyLimiter returns nil when limiting is disabled or redis is absent.
func NewVerifyLimiter(cfg config.Config, client *redis.Client) (*VerifyLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	limit := Bucket{Rate: limitCfg.VerifyRate, Burst: limitCfg.VerifyBurst}
	if !limit.valid() {
		return nil, fmt.Errorf("verify rate limit (rate=%v burst=%d): %w", limit.Rate, limit.Burst, ErrInvalidBucket)
	}
	return &VerifyLimiter{
		bucket: NewTokenBucket(client),
		limit:  limit,
	}, nil
}

func (l *VerifyLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token for ip. A disabled limiter always allows.
func (l *VerifyLimiter) Allow(ctx context.Context, ip string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return l.bucket.Take(ctx, fmt.Sprintf(keyVerifyIP, ip), l.limit)
}

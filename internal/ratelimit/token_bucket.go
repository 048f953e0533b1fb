package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLimiterNotConfigured = errors.New("ratelimit: limiter not configured")
	ErrInvalidBucket        = errors.New("ratelimit: rate and burst must be positive")
)

// The script refills the bucket from redis server time, takes one token
// when available and reports the wait for the next token in milliseconds.
// Token counts are returned as strings so fractions survive the Lua to
// RESP conversion.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now

local elapsed = math.max(0, now - last)
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local granted = 0
local wait = 0
if tokens >= 1 then
  granted = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {granted, tostring(tokens), wait}
`

// Bucket is the refill rate in tokens per second and the bucket capacity.
type Bucket struct {
	Rate  float64
	Burst int
}

func (b Bucket) valid() bool {
	return b.Rate > 0 && b.Burst > 0
}

// ttl keeps idle buckets around for twice the time a full refill takes.
func (b Bucket) ttl() time.Duration {
	seconds := math.Ceil(float64(b.Burst) / b.Rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

// Decision is the outcome of one bucket check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket is a redis-backed bucket shared by every server replica.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Take consumes one token from the bucket stored at key.
func (t *TokenBucket) Take(ctx context.Context, key string, b Bucket) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, ErrLimiterNotConfigured
	}
	if key == "" {
		return Decision{}, errors.New("ratelimit: key is empty")
	}
	if !b.valid() {
		return Decision{}, ErrInvalidBucket
	}

	res, err := t.script.Run(ctx, t.client, []string{key},
		b.Rate, b.Burst, b.ttl().Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply of %d values", len(res))
	}

	return Decision{
		Allowed:    toInt64(res[0]) == 1,
		Limit:      b.Burst,
		Remaining:  int(toFloat64(res[1])),
		RetryAfter: time.Duration(toInt64(res[2])) * time.Millisecond,
	}, nil
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}

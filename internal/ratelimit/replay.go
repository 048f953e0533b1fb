package ratelimit

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/petfeeder/internal/config"
	"golang.org/x/crypto/blake2b"
)

const keyCaptchaToken = "captcha:token:"

const claimReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrTokenReplayed is returned when a captcha token was already submitted.
var ErrTokenReplayed = errors.New("captcha_token_replayed")

// ReplayGuard makes captcha tokens single-use across replicas. Tokens are
// stored as blake2b digests so raw tokens never sit in redis.
type ReplayGuard struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
}

func NewReplayGuard(cfg config.Config, client *redis.Client) *ReplayGuard {
	if client == nil {
		return nil
	}
	ttl := time.Duration(cfg.Captcha.ReplayTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReplayGuard{
		client: client,
		script: redis.NewScript(claimReleaseScript),
		ttl:    ttl,
	}
}

func (g *ReplayGuard) Enabled() bool {
	return g != nil && g.client != nil
}

// Claim marks token as used and returns a claim id for Release. A disabled
// guard always succeeds with an empty claim id.
func (g *ReplayGuard) Claim(ctx context.Context, token string) (string, error) {
	if !g.Enabled() {
		return "", nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("captcha token is empty")
	}

	claim := uuid.NewString()
	ok, err := g.client.SetNX(ctx, tokenKey(token), claim, g.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrTokenReplayed
	}
	return claim, nil
}

// Release drops a claim so the token can be submitted again, used when
// verification failed for reasons unrelated to the token itself.
func (g *ReplayGuard) Release(ctx context.Context, token, claim string) error {
	if !g.Enabled() || claim == "" {
		return nil
	}
	return g.script.Run(ctx, g.client, []string{tokenKey(strings.TrimSpace(token))}, claim).Err()
}

func tokenKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return keyCaptchaToken + hex.EncodeToString(sum[:])
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SUPABASE_URL", " https://project.example.co ")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("PORT", "8080")
	t.Setenv("REDIS_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_VERIFY_BURST", "3")
	t.Setenv("RATE_LIMIT_VERIFY_RATE", "not-a-number")

	cfg := Load()

	assert.True(t, cfg.Backend.Configured())
	assert.Equal(t, "https://project.example.co", cfg.Backend.URL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.RateLimit.VerifyBurst)
	assert.Equal(t, 0.5, cfg.RateLimit.VerifyRate)
}

func TestBackendNotConfigured(t *testing.T) {
	assert.False(t, BackendConfig{URL: "https://x.example"}.Configured())
	assert.False(t, BackendConfig{AnonKey: "k"}.Configured())
}

const siteKeysYAML = `captcha:
  production_key: prod-key
  hosts:
    Feeder.Example.com: feeder-key
`

func TestSiteKeyHolderLoadsAndReloads(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "captcha.yml")
	require.NoError(t, os.WriteFile(file, []byte(siteKeysYAML), 0o644))

	holder, err := newSiteKeyHolder(zap.NewNop(), dir)
	require.NoError(t, err)

	assert.Equal(t, "feeder-key", holder.SiteKey("feeder.example.com"))
	assert.Equal(t, "prod-key", holder.SiteKey("other.example.com"))
	assert.Equal(t, captcha.TestSiteKey, holder.SiteKey("localhost"))

	updated := "captcha:\n  production_key: prod-key-2\n"
	require.NoError(t, os.WriteFile(file, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		return holder.SiteKey("other.example.com") == "prod-key-2"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSiteKeyHolderRejectsFileWithoutProductionKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "captcha.yml"), []byte("captcha:\n  hosts: {}\n"), 0o644))

	_, err := newSiteKeyHolder(zap.NewNop(), dir)
	assert.ErrorIs(t, err, captcha.ErrMissingSiteKey)
}

func TestSiteKeyHolderFallsBackToEnvironment(t *testing.T) {
	t.Setenv("TURNSTILE_SITE_KEY", "env-key")

	holder, err := newSiteKeyHolder(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "env-key", holder.SiteKey("feeder.example.com"))
}

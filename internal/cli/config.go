package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/spf13/viper"
)

const (
	defaultSiteURL        = "http://localhost:3000"
	defaultCaptchaTimeout = 20 * time.Second
	stateFileName         = "session.json"
)

// Config is the feederctl configuration. Values come from flags, then
// FEEDERCTL_* and the dashboard's own environment variables, then
// feederctl.yml in the state directory.
type Config struct {
	BackendURL       string
	AnonKey          string
	SiteURL          string
	CaptchaScriptURL string
	// CaptchaToken is a verification token obtained out of band. Without
	// one the widget cannot render headless and the loader falls back.
	CaptchaToken   string
	CaptchaTimeout time.Duration
	StateDir       string
	Verbose        bool
}

func (c Config) StatePath() string {
	return filepath.Join(c.StateDir, stateFileName)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("feederctl")
	v.SetConfigType("yml")
	v.SetEnvPrefix("FEEDERCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("site-url", defaultSiteURL)
	v.SetDefault("captcha-script-url", captcha.DefaultScriptURL)
	v.SetDefault("captcha-timeout", defaultCaptchaTimeout)
	v.SetDefault("state-dir", defaultStateDir())

	// The dashboard's variable names work too.
	_ = v.BindEnv("backend-url", "FEEDERCTL_BACKEND_URL", "SUPABASE_URL")
	_ = v.BindEnv("anon-key", "FEEDERCTL_ANON_KEY", "SUPABASE_ANON_KEY")
	_ = v.BindEnv("captcha-script-url", "FEEDERCTL_CAPTCHA_SCRIPT_URL", "TURNSTILE_SCRIPT_URL")
	return v
}

// LoadConfig reads feederctl.yml from the state directory, when present,
// and resolves the final configuration.
func LoadConfig(v *viper.Viper) (Config, error) {
	v.AddConfigPath(v.GetString("state-dir"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	cfg := Config{
		BackendURL:       strings.TrimSpace(v.GetString("backend-url")),
		AnonKey:          strings.TrimSpace(v.GetString("anon-key")),
		SiteURL:          strings.TrimSuffix(strings.TrimSpace(v.GetString("site-url")), "/"),
		CaptchaScriptURL: strings.TrimSpace(v.GetString("captcha-script-url")),
		CaptchaToken:     strings.TrimSpace(v.GetString("captcha-token")),
		CaptchaTimeout:   v.GetDuration("captcha-timeout"),
		StateDir:         v.GetString("state-dir"),
		Verbose:          v.GetBool("verbose"),
	}
	if cfg.CaptchaTimeout <= 0 {
		cfg.CaptchaTimeout = defaultCaptchaTimeout
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = defaultSiteURL
	}
	return cfg, nil
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".petfeeder"
	}
	return filepath.Join(dir, "petfeeder")
}

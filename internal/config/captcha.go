package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultSiteKeys is used when no captcha.yml is found.
func DefaultSiteKeys() captcha.SiteKeyTable {
	return captcha.SiteKeyTable{
		Hosts:         map[string]string{},
		TestKey:       captcha.TestSiteKey,
		ProductionKey: strings.TrimSpace(getenv("TURNSTILE_SITE_KEY", "")),
	}
}

// SiteKeyHolder serves the captcha site key table and reloads it when
// captcha.yml changes.
type SiteKeyHolder struct {
	current atomic.Value // holds captcha.SiteKeyTable
}

func NewSiteKeyHolder(log *zap.Logger) (*SiteKeyHolder, error) {
	return newSiteKeyHolder(log, "/etc/petfeeder", "./config", ".")
}

func newSiteKeyHolder(log *zap.Logger, paths ...string) (*SiteKeyHolder, error) {
	log = log.Named("config.captcha")
	v := viper.New()

	v.SetConfigName("captcha")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("PETFEEDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSiteKeys()
	v.SetDefault("captcha.test_key", defaults.TestKey)
	v.SetDefault("captcha.production_key", defaults.ProductionKey)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := readSiteKeys(v)
	if fileFound {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	holder := &SiteKeyHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		if cfg.Validate() != nil {
			log.Warn("no production captcha site key configured, public hosts get an empty key")
		}
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readSiteKeys(v)
		if err := updated.Validate(); err != nil {
			log.Warn("invalid captcha site keys ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("captcha site keys reloaded", zap.String("file", e.Name), zap.Int("hosts", len(updated.Hosts)))
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticSiteKeyHolder serves a fixed table.
func NewStaticSiteKeyHolder(table captcha.SiteKeyTable) *SiteKeyHolder {
	holder := &SiteKeyHolder{}
	holder.current.Store(table)
	return holder
}

func (h *SiteKeyHolder) Get() captcha.SiteKeyTable {
	return h.current.Load().(captcha.SiteKeyTable)
}

// SiteKey implements captcha.SiteKeyResolver against the latest table.
func (h *SiteKeyHolder) SiteKey(host string) string {
	return h.Get().SiteKey(host)
}

func readSiteKeys(v *viper.Viper) captcha.SiteKeyTable {
	hosts := make(map[string]string)
	for host, key := range v.GetStringMapString("captcha.hosts") {
		hosts[strings.ToLower(strings.TrimSpace(host))] = strings.TrimSpace(key)
	}
	return captcha.SiteKeyTable{
		Hosts:         hosts,
		TestKey:       strings.TrimSpace(v.GetString("captcha.test_key")),
		ProductionKey: strings.TrimSpace(v.GetString("captcha.production_key")),
	}
}

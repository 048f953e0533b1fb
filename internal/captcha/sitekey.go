package captcha

import (
	"net"
	"strings"
)

// TestSiteKey always passes verification; it is used on local hosts.
const TestSiteKey = "1x00000000000000000000AA"

// SiteKeyTable maps hostnames to site keys.
type SiteKeyTable struct {
	Hosts         map[string]string `mapstructure:"hosts" yaml:"hosts"`
	TestKey       string            `mapstructure:"test_key" yaml:"test_key"`
	ProductionKey string            `mapstructure:"production_key" yaml:"production_key"`
}

// SiteKey resolves host by exact match, then local hosts to the test key,
// then everything else to the production key.
func (t SiteKeyTable) SiteKey(host string) string {
	host = normalizeHost(host)
	if key, ok := t.Hosts[host]; ok && key != "" {
		return key
	}
	if IsLocalHost(host) {
		if t.TestKey != "" {
			return t.TestKey
		}
		return TestSiteKey
	}
	return t.ProductionKey
}

// Validate rejects a table that cannot resolve a key for public hosts.
func (t SiteKeyTable) Validate() error {
	if strings.TrimSpace(t.ProductionKey) == "" {
		return ErrMissingSiteKey
	}
	return nil
}

// IsLocalHost reports whether host is a development host.
func IsLocalHost(host string) bool {
	host = normalizeHost(host)
	switch host {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0", "":
		return true
	}
	if strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate()
	}
	return false
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

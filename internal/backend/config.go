// Package backend is the client for the hosted backend-as-a-service: the
// GoTrue-style auth API and the PostgREST-style table gateway.
package backend

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/petfeeder/internal/clock"
	"go.uber.org/zap"
)

// ErrConfig is returned when the base URL or the public key is missing.
var ErrConfig = errors.New("backend: invalid configuration")

// Config carries the public connection settings of the backend project.
type Config struct {
	URL     string
	AnonKey string

	// Optional collaborators.
	HTTPClient *http.Client
	Storage    SessionStorage
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Validate checks the required fields.
func (c Config) Validate() error {
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return fmt.Errorf("%w: base URL is required", ErrConfig)
	}
	if strings.TrimSpace(c.AnonKey) == "" {
		return fmt.Errorf("%w: public API key is required", ErrConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL: %v", ErrConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL must be absolute", ErrConfig)
	}
	return nil
}

func (c Config) normalizedURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.URL), "/")
}

// Package captcha loads the third-party bot verification widget, attaches a
// widget to every guarded form, and degrades to a fallback token when the
// widget cannot be loaded. It also verifies tokens on the server.
package captcha

import (
	"errors"
	"strings"
)

const (
	// MaxRetries bounds both script load attempts and per-container widget
	// error retries.
	MaxRetries = 3

	// SentinelToken is submitted in place of a real token in fallback mode.
	SentinelToken = "captcha-fallback-unavailable"

	// FallbackMessage is shown in every container in fallback mode.
	FallbackMessage = "Verification is temporarily unavailable. You may proceed."

	// FormMarker is the attribute that marks a form as guarded.
	FormMarker = "data-captcha"
)

type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusFallback Status = "fallback"
)

var (
	ErrLoadTimeout    = errors.New("captcha: script load timed out")
	ErrLoadFailed     = errors.New("captcha: script failed to load")
	ErrLoaderStopped  = errors.New("captcha: loader stopped")
	ErrMissingSiteKey = errors.New("captcha: production site key is required")
)

// WidgetState is the per-container record of a guarded form.
type WidgetState struct {
	FormID      string
	ContainerID string
	RetryCount  int
	Status      Status
	Token       string
}

// ContainerID returns the verification container id of a form.
func ContainerID(formID string) string {
	return formID + "-captcha-container"
}

// TokenFieldID returns the hidden token field id of a container.
func TokenFieldID(containerID string) string {
	return containerID + "-token"
}

// Widget error codes that mean the site key or domain is not accepted.
// They are terminal: retrying cannot succeed on this host.
var terminalCodes = map[string]bool{
	"110100":                  true,
	"110110":                  true,
	"110200":                  true,
	"400020":                  true,
	"invalid_sitekey":         true,
	"invalid_domain":          true,
	"unsupported_environment": true,
}

// IsTerminal reports whether a widget error code forces fallback mode.
func IsTerminal(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if terminalCodes[code] {
		return true
	}
	// 1101xx: invalid site key, 1102xx: domain not authorized
	return strings.HasPrefix(code, "1101") || strings.HasPrefix(code, "1102")
}

// RenderError is returned by a WidgetRenderer that cannot create a widget.
type RenderError struct {
	Code string
}

func (e *RenderError) Error() string {
	return "captcha: render failed: " + e.Code
}

package captcha

import (
	"context"
	"time"
)

// Document is the page the widgets live in.
type Document interface {
	// GuardedForms returns the ids of the forms carrying FormMarker.
	GuardedForms() []string
	// EnsureContainer creates the verification container and its hidden
	// token field right before the form's submit control, unless present.
	EnsureContainer(formID, containerID, tokenFieldID string) error
	HasContainer(containerID string) bool
	Token(containerID string) string
	SetToken(containerID, token string)
	// Flag toggles the "verification required" highlight.
	Flag(containerID string, flagged bool)
	// ShowFallback replaces the container content with a static message.
	ShowFallback(containerID, message string)
}

// ScriptInjector loads the widget script. onReady receives the widget API
// once the script has loaded; onError reports a failed load. A hung load
// calls neither. The returned func removes the injected script.
type ScriptInjector interface {
	Inject(src string, onReady func(WidgetRenderer), onError func(error)) (remove func())
}

// WidgetRenderer is the API exposed by the loaded script.
type WidgetRenderer interface {
	Render(containerID string, opts RenderOptions) (widgetID string, err error)
	Remove(widgetID string)
}

type RenderOptions struct {
	SiteKey         string
	Callback        func(token string)
	ErrorCallback   func(code string)
	ExpiredCallback func()
}

// SiteKeyResolver picks the site key for a hostname.
type SiteKeyResolver interface {
	SiteKey(host string) string
}

// FallbackReport describes one entry into fallback mode.
type FallbackReport struct {
	ID         string    `json:"report_id"`
	Reason     string    `json:"reason"`
	Host       string    `json:"host"`
	Attempts   int       `json:"attempts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Reporter delivers fallback reports for auditing. Delivery is best effort.
type Reporter interface {
	Report(ctx context.Context, r FallbackReport) error
}

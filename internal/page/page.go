// Package page composes one page context: backend client, session store,
// protected-page guard, auth flows and, on auth pages, the captcha loader.
package page

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/auth/flow"
	"github.com/smallbiznis/petfeeder/internal/auth/session"
	"github.com/smallbiznis/petfeeder/internal/backend"
	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/smallbiznis/petfeeder/internal/clock"
	"go.uber.org/zap"
)

// AuthPages carry guarded forms and load the captcha widget.
var AuthPages = []string{"login", "signup", "reset-password", "forgot-password"}

type Config struct {
	BackendURL string
	AnonKey    string
	// SiteURL is the public origin of the dashboard.
	SiteURL string
	// Location is the current URL, absolute or a path with query.
	Location string

	CaptchaScriptURL   string
	CaptchaSiteKeys    captcha.SiteKeyResolver
	CaptchaRetryDelay  time.Duration
	CaptchaLoadTimeout time.Duration
}

// Platform supplies the host-specific adapters.
type Platform struct {
	Navigator session.Navigator
	Presenter flow.Presenter

	// Document and Injector are required on auth pages only.
	Document captcha.Document
	Injector captcha.ScriptInjector
	Reporter captcha.Reporter

	Storage    backend.SessionStorage
	Verifiers  flow.VerifierStore
	HTTPClient *http.Client
	Clock      clock.Clock
	// Factory defaults to backend.DefaultFactory.
	Factory *backend.Factory
	// OnPrincipal is subscribed to the session store for the page lifetime.
	OnPrincipal func(*authdomain.Principal)
}

// Context is an open page.
type Context struct {
	Client  *backend.Client
	Session *session.Store
	Flows   *flow.Orchestrator
	// Captcha is nil outside auth pages.
	Captcha *captcha.Loader
	// Redirected is set when the guard sent the visitor to the login page.
	Redirected bool

	path    string
	query   url.Values
	factory *backend.Factory
	sub     *session.Subscription
	log     *zap.Logger
}

// Open builds the page context. A configuration error disables the page
// context and is returned.
func Open(ctx context.Context, cfg Config, p Platform, log *zap.Logger) (*Context, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("page")

	factory := p.Factory
	if factory == nil {
		factory = backend.DefaultFactory
	}
	client, err := factory.Get(backend.Config{
		URL:        cfg.BackendURL,
		AnonKey:    cfg.AnonKey,
		HTTPClient: p.HTTPClient,
		Storage:    p.Storage,
		Clock:      p.Clock,
		Logger:     log,
	})
	if err != nil {
		log.Error("backend not configured, auth disabled", zap.Error(err))
		return nil, err
	}

	path, query, host := splitLocation(cfg.Location)
	pc := &Context{
		Client:  client,
		path:    path,
		query:   query,
		factory: factory,
		log:     log,
	}

	pc.Session = session.NewStore(client, log)
	principal, err := pc.Session.Start(ctx)
	if err != nil {
		log.Warn("initial session refresh failed", zap.Error(err))
	}
	if p.OnPrincipal != nil {
		sub := pc.Session.Subscribe(p.OnPrincipal)
		pc.sub = &sub
	}
	pc.Redirected = session.Guard(path, principal, p.Navigator)

	if IsAuthPage(path) && p.Document != nil && p.Injector != nil {
		pc.Captcha = captcha.NewLoader(p.Document, p.Injector, captcha.Options{
			ScriptURL:   cfg.CaptchaScriptURL,
			Host:        host,
			SiteKeys:    cfg.CaptchaSiteKeys,
			RetryDelay:  cfg.CaptchaRetryDelay,
			LoadTimeout: cfg.CaptchaLoadTimeout,
			Clock:       p.Clock,
			Reporter:    p.Reporter,
			Logger:      log,
		})
	}

	params := flow.Params{
		Backend:   client,
		Presenter: p.Presenter,
		Navigator: p.Navigator,
		Session:   pc.Session,
		Verifiers: p.Verifiers,
		SiteURL:   cfg.SiteURL,
		Logger:    log,
	}
	if pc.Captcha != nil {
		params.Gate = pc.Captcha
		pc.Captcha.Start()
	}
	pc.Flows = flow.New(params)

	return pc, nil
}

// Path is the current path without query.
func (c *Context) Path() string {
	return c.path
}

// RedirectParam returns the raw redirect query parameter.
func (c *Context) RedirectParam() string {
	return c.query.Get("redirect")
}

// Close tears the page down: listeners are dropped, the loader stopped and
// the client slot emptied.
func (c *Context) Close() {
	if c.sub != nil {
		c.Session.Unsubscribe(*c.sub)
	}
	c.Session.Close()
	if c.Captcha != nil {
		c.Captcha.Stop()
	}
	c.factory.Reset()
}

// IsAuthPage reports whether path is a sign-in, sign-up or reset page.
func IsAuthPage(path string) bool {
	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".html")
	for _, name := range AuthPages {
		if path == name || strings.HasSuffix(path, "/"+name) {
			return true
		}
	}
	return false
}

func splitLocation(location string) (path string, query url.Values, host string) {
	u, err := url.Parse(location)
	if err != nil {
		return location, url.Values{}, ""
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return path, u.Query(), u.Host
}

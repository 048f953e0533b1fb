// Package flow drives the sign-in, sign-up, password reset, OAuth and
// sign-out forms: validate, call the backend once, map the outcome, render,
// and redirect.
package flow

//go:generate mockgen -destination=mock_flow_test.go -package=flow github.com/smallbiznis/petfeeder/internal/auth/flow Backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/auth/features"
	"github.com/smallbiznis/petfeeder/internal/backend"
	"go.uber.org/zap"
)

// Guarded form ids.
const (
	FormLogin          = "login-form"
	FormSignup         = "signup-form"
	FormReset          = "reset-form"
	FormUpdatePassword = "update-password-form"
	FormSignOut        = "signout"
	FormOAuth          = "oauth"
)

// Routes the flows navigate to.
const (
	RouteDashboard     = "/dashboard"
	RouteLanding       = "/"
	RouteLogin         = "/login"
	RouteResetPassword = "/reset-password"
)

// GuardedForms require a verification token before submission.
var GuardedForms = []string{FormLogin, FormSignup, FormReset}

// Backend is the set of backend operations the flows call.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password, captchaToken string) (*backend.Session, error)
	SignUp(ctx context.Context, p backend.SignUpParams) (*backend.SignUpResult, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo, captchaToken string) error
	UpdatePassword(ctx context.Context, newPassword string) (*backend.User, error)
	SignOut(ctx context.Context) error
	OAuthURL(req backend.OAuthRequest) (*backend.OAuthStart, error)
}

// Gate is the captcha submit gate.
type Gate interface {
	// Check returns the verification token for formID. ok is false when the
	// submission must be blocked.
	Check(formID string) (token string, ok bool)
	// Reset discards the token of formID so the next submit gets a fresh one.
	Reset(formID string)
}

// Presenter renders flow state. Implementations must tolerate calls for
// forms that are no longer on the page.
type Presenter interface {
	SetBusy(form string, busy bool)
	ShowError(form string, res authdomain.FlowResult)
	ShowSuccess(form string, res authdomain.FlowResult)
	HideForm(form string)
}

type Navigator interface {
	Navigate(target string)
}

// SessionState is the local principal holder cleared on sign-out.
type SessionState interface {
	Clear()
}

// VerifierStore keeps the PKCE verifier until the provider calls back.
type VerifierStore interface {
	SaveVerifier(provider, verifier string) error
}

type SignInInput struct {
	Email    string
	Password string
	// Redirect is the raw value of the redirect query parameter.
	Redirect string
}

type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
	AcceptTerms     bool
}

type ResetRequestInput struct {
	Email string
}

type ResetConfirmInput struct {
	Password        string
	ConfirmPassword string
}

type OAuthInput struct {
	Provider string
	Redirect string
}

type Params struct {
	Backend   Backend
	Presenter Presenter
	Navigator Navigator
	Session   SessionState
	// Gate is optional; without it guarded forms submit without a token.
	Gate Gate
	// Verifiers is optional.
	Verifiers VerifierStore
	// SiteURL is the public origin used for email and OAuth redirect links.
	SiteURL string
	Logger  *zap.Logger
}

// Orchestrator runs the auth flows of one page context.
type Orchestrator struct {
	backend   Backend
	presenter Presenter
	nav       Navigator
	session   SessionState
	gate      Gate
	verifiers VerifierStore
	siteURL   string
	log       *zap.Logger

	mu   sync.Mutex
	busy map[string]bool
}

func New(p Params) *Orchestrator {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		backend:   p.Backend,
		presenter: p.Presenter,
		nav:       p.Navigator,
		session:   p.Session,
		gate:      p.Gate,
		verifiers: p.Verifiers,
		siteURL:   strings.TrimSuffix(p.SiteURL, "/"),
		log:       log.Named("auth.flow"),
		busy:      make(map[string]bool),
	}
}

// SignIn exchanges credentials for a session and redirects to the requested
// page or the dashboard.
func (o *Orchestrator) SignIn(ctx context.Context, in SignInInput) authdomain.FlowResult {
	return o.run(FormLogin, func() authdomain.FlowResult {
		if err := in.Validate(); err != nil {
			return o.fail(FormLogin, err)
		}
		token, res, ok := o.verify(FormLogin)
		if !ok {
			return res
		}
		if _, err := o.backend.SignInWithPassword(ctx, in.Email, in.Password, token); err != nil {
			o.resetGate(FormLogin)
			return o.fail(FormLogin, err)
		}
		target := ResolveRedirect(in.Redirect)
		o.nav.Navigate(target)
		return authdomain.Success("Signed in.", target)
	})
}

// SignUp creates an account. Accounts awaiting email confirmation get a
// message and the form is hidden; confirmed accounts go to the dashboard.
func (o *Orchestrator) SignUp(ctx context.Context, in SignUpInput) authdomain.FlowResult {
	return o.run(FormSignup, func() authdomain.FlowResult {
		if err := in.Validate(); err != nil {
			return o.fail(FormSignup, err)
		}
		token, res, ok := o.verify(FormSignup)
		if !ok {
			return res
		}

		var data map[string]any
		if name := strings.TrimSpace(in.FullName); name != "" {
			data = map[string]any{"full_name": name}
		}
		result, err := o.backend.SignUp(ctx, backend.SignUpParams{
			Email:        in.Email,
			Password:     in.Password,
			Data:         data,
			CaptchaToken: token,
			RedirectTo:   o.link(RouteDashboard),
		})
		if err != nil {
			o.resetGate(FormSignup)
			return o.fail(FormSignup, err)
		}

		if result.ConfirmationPending() {
			o.presenter.HideForm(FormSignup)
			return authdomain.Success("Check your email to confirm your account.", "")
		}
		o.nav.Navigate(RouteDashboard)
		return authdomain.Success("Account created.", RouteDashboard)
	})
}

// RequestPasswordReset sends the recovery email.
func (o *Orchestrator) RequestPasswordReset(ctx context.Context, in ResetRequestInput) authdomain.FlowResult {
	return o.run(FormReset, func() authdomain.FlowResult {
		if err := in.Validate(); err != nil {
			return o.fail(FormReset, err)
		}
		token, res, ok := o.verify(FormReset)
		if !ok {
			return res
		}
		if err := o.backend.ResetPasswordForEmail(ctx, in.Email, o.link(RouteResetPassword), token); err != nil {
			o.resetGate(FormReset)
			return o.fail(FormReset, err)
		}
		return authdomain.Success("Check your email for a link to reset your password.", "")
	})
}

// ConfirmPasswordReset sets the new password of the recovering user.
func (o *Orchestrator) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) authdomain.FlowResult {
	return o.run(FormUpdatePassword, func() authdomain.FlowResult {
		if err := in.Validate(); err != nil {
			return o.fail(FormUpdatePassword, err)
		}
		if _, err := o.backend.UpdatePassword(ctx, in.Password); err != nil {
			return o.fail(FormUpdatePassword, err)
		}
		o.nav.Navigate(RouteLogin)
		return authdomain.Success("Password updated. Please sign in with your new password.", RouteLogin)
	})
}

// SignOut always leaves the page signed out, whatever the backend answers.
func (o *Orchestrator) SignOut(ctx context.Context) authdomain.FlowResult {
	return o.run(FormSignOut, func() authdomain.FlowResult {
		if err := o.backend.SignOut(ctx); err != nil {
			o.log.Warn("sign out failed, clearing local session", zap.Error(err))
		}
		if o.session != nil {
			o.session.Clear()
		}
		o.nav.Navigate(RouteLanding)
		return authdomain.Success("Signed out.", RouteLanding)
	})
}

// OAuth navigates to the provider's consent page. The provider sends the
// user back to the requested page or the dashboard.
func (o *Orchestrator) OAuth(ctx context.Context, in OAuthInput) authdomain.FlowResult {
	_ = ctx
	return o.run(FormOAuth, func() authdomain.FlowResult {
		provider := strings.ToLower(strings.TrimSpace(in.Provider))
		if !features.OAuthEnabled(provider) {
			return o.fail(FormOAuth, authdomain.NewValidationError("provider", authdomain.ErrUnsupportedOAuth,
				fmt.Sprintf("Sign in with %q is not available.", in.Provider)))
		}
		start, err := o.backend.OAuthURL(backend.OAuthRequest{
			Provider:   provider,
			RedirectTo: o.link(ResolveRedirect(in.Redirect)),
		})
		if err != nil {
			return o.fail(FormOAuth, err)
		}
		if o.verifiers != nil {
			if err := o.verifiers.SaveVerifier(provider, start.CodeVerifier); err != nil {
				return o.fail(FormOAuth, err)
			}
		}
		o.nav.Navigate(start.URL)
		return authdomain.Success("Redirecting to "+provider+".", start.URL)
	})
}

// ResolveRedirect returns the redirect parameter when it is a same-site
// path, and the dashboard otherwise.
func ResolveRedirect(raw string) string {
	target := strings.TrimSpace(raw)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return RouteDashboard
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return RouteDashboard
	}
	return target
}

// run executes one submission of form. A second submission of the same form
// while the first is in flight is skipped. Panics become a failure result.
func (o *Orchestrator) run(form string, fn func() authdomain.FlowResult) (res authdomain.FlowResult) {
	if !o.acquire(form) {
		o.log.Debug("submission skipped, form busy", zap.String("form", form))
		return authdomain.FlowResult{Skipped: true, Message: authdomain.ErrFlowAlreadyActive.Error()}
	}
	o.presenter.SetBusy(form, true)

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("auth flow panicked", zap.String("form", form), zap.Any("panic", r))
			res = authdomain.Failure(authdomain.ErrorKindBackendRejected, genericMessage)
		}
		if res.OK {
			o.presenter.ShowSuccess(form, res)
		} else {
			o.presenter.ShowError(form, res)
		}
		o.presenter.SetBusy(form, false)
		o.release(form)
	}()

	return fn()
}

func (o *Orchestrator) acquire(form string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy[form] {
		return false
	}
	o.busy[form] = true
	return true
}

func (o *Orchestrator) release(form string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.busy, form)
}

// verify consults the captcha gate for guarded forms.
func (o *Orchestrator) verify(form string) (string, authdomain.FlowResult, bool) {
	if o.gate == nil || !isGuarded(form) {
		return "", authdomain.FlowResult{}, true
	}
	token, ok := o.gate.Check(form)
	if !ok {
		err := authdomain.NewValidationError("captcha", authdomain.ErrCaptchaRequired, "Please complete the verification challenge.")
		return "", o.fail(form, err), false
	}
	return token, authdomain.FlowResult{}, true
}

func (o *Orchestrator) resetGate(form string) {
	if o.gate != nil && isGuarded(form) {
		o.gate.Reset(form)
	}
}

func (o *Orchestrator) link(route string) string {
	if o.siteURL == "" {
		return ""
	}
	return o.siteURL + route
}

func isGuarded(form string) bool {
	for _, f := range GuardedForms {
		if f == form {
			return true
		}
	}
	return false
}

// fail logs err and maps it onto a flow result.
func (o *Orchestrator) fail(form string, err error) authdomain.FlowResult {
	res := Classify(err)
	switch res.ErrorKind {
	case authdomain.ErrorKindInvalidInput:
		o.log.Debug("input rejected", zap.String("form", form), zap.String("field", res.Field), zap.Error(err))
	case authdomain.ErrorKindNetworkError:
		o.log.Warn("backend unreachable", zap.String("form", form), zap.Error(err))
	default:
		o.log.Info("backend rejected request", zap.String("form", form), zap.Error(err))
	}
	return res
}

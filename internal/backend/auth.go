package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"go.uber.org/zap"
)

type securityMeta struct {
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func captchaMeta(token string) *securityMeta {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return &securityMeta{CaptchaToken: token}
}

// GetSession returns the live session, refreshing it when the access token
// has expired. It returns (nil, nil) when nobody is signed in.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	s := c.currentSession()
	if s == nil {
		return nil, nil
	}
	if !s.expired(c.clock.Now()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		c.clearSession()
		c.emit(authdomain.SignedOut())
		return nil, nil
	}

	refreshed, err := c.grant(ctx, "refresh_token", map[string]any{"refresh_token": s.RefreshToken})
	if err != nil {
		if _, rejected := AsAPIError(err); rejected {
			c.clearSession()
			c.emit(authdomain.SignedOut())
		}
		return nil, err
	}
	c.setSession(refreshed)
	return refreshed, nil
}

// GetUser fetches the account behind the current session.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	return c.fetchUser(ctx, s.AccessToken)
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, authPath+"/user", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user User
	if err := c.do("get user", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password, captchaToken string) (*Session, error) {
	s, err := c.grant(ctx, "password", map[string]any{
		"email":                strings.TrimSpace(email),
		"password":             password,
		"gotrue_meta_security": captchaMeta(captchaToken),
	})
	if err != nil {
		return nil, err
	}
	c.signedIn(s)
	return s, nil
}

type SignUpParams struct {
	Email        string
	Password     string
	Data         map[string]any
	CaptchaToken string
	RedirectTo   string
}

// SignUpResult carries the created account. Session is nil while the email
// address awaits confirmation.
type SignUpResult struct {
	User    User
	Session *Session
}

func (r SignUpResult) ConfirmationPending() bool {
	return r.Session == nil
}

// SignUp creates an account. Projects with email confirmation enabled return
// the user without a session.
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*SignUpResult, error) {
	query := url.Values{}
	if p.RedirectTo != "" {
		query.Set("redirect_to", p.RedirectTo)
	}
	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/signup", query, map[string]any{
		"email":                strings.TrimSpace(p.Email),
		"password":             p.Password,
		"data":                 p.Data,
		"gotrue_meta_security": captchaMeta(p.CaptchaToken),
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		tokenResponse
		User
	}
	if err := c.do("sign up", req, &raw); err != nil {
		return nil, err
	}

	if raw.AccessToken == "" {
		return &SignUpResult{User: raw.User}, nil
	}
	s := raw.tokenResponse.session(c.clock.Now())
	c.signedIn(s)
	return &SignUpResult{User: s.User, Session: s}, nil
}

// ResetPasswordForEmail sends the recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo, captchaToken string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/recover", query, map[string]any{
		"email":                strings.TrimSpace(email),
		"gotrue_meta_security": captchaMeta(captchaToken),
	})
	if err != nil {
		return err
	}
	return c.do("recover", req, nil)
}

// SetSession installs the tokens delivered by a recovery or magic link after
// checking them against the backend.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrNoSession
	}
	user, err := c.fetchUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	s := tokenResponse{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "bearer", User: user}.session(c.clock.Now())
	c.signedIn(s)
	return s, nil
}

// UpdatePassword sets a new password for the signed-in (or recovering) user.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) (*User, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}

	req, err := c.newRequest(ctx, http.MethodPut, authPath+"/user", nil, map[string]any{"password": newPassword})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)

	var user User
	if err := c.do("update user", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session on the backend. The local session is cleared
// and SignedOut emitted even when the revoke call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.currentSession()

	var callErr error
	if s != nil && s.AccessToken != "" {
		req, err := c.newRequest(ctx, http.MethodPost, authPath+"/logout", url.Values{"scope": {"local"}}, nil)
		if err != nil {
			callErr = err
		} else {
			req.Header.Set("Authorization", "Bearer "+s.AccessToken)
			callErr = c.do("sign out", req, nil)
		}
	}

	c.clearSession()
	c.emit(authdomain.SignedOut())

	if callErr != nil {
		c.log.Warn("sign out request failed, local session cleared", zap.Error(callErr))
	}
	return callErr
}

type OAuthRequest struct {
	Provider   string
	RedirectTo string
	Scopes     []string
}

// OAuthStart is the authorize URL plus the PKCE verifier the caller must keep
// until ExchangeCode.
type OAuthStart struct {
	URL          string
	CodeVerifier string
}

// OAuthURL builds the provider redirect with a PKCE S256 challenge.
func (c *Client) OAuthURL(req OAuthRequest) (*OAuthStart, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		return nil, errors.New("backend: oauth provider is required")
	}

	verifier, err := randomToken(32)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("provider", provider)
	if req.RedirectTo != "" {
		query.Set("redirect_to", req.RedirectTo)
	}
	if len(req.Scopes) > 0 {
		query.Set("scopes", strings.Join(req.Scopes, " "))
	}
	query.Set("code_challenge", pkceChallenge(verifier))
	query.Set("code_challenge_method", "s256")

	return &OAuthStart{
		URL:          fmt.Sprintf("%s%s/authorize?%s", c.baseURL, authPath, query.Encode()),
		CodeVerifier: verifier,
	}, nil
}

// ExchangeCode completes the PKCE flow started by OAuthURL.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("backend: authorization code is required")
	}
	s, err := c.grant(ctx, "pkce", map[string]any{
		"auth_code":     code,
		"code_verifier": verifier,
	})
	if err != nil {
		return nil, err
	}
	c.signedIn(s)
	return s, nil
}

func (c *Client) grant(ctx context.Context, grantType string, payload map[string]any) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/token", url.Values{"grant_type": {grantType}}, payload)
	if err != nil {
		return nil, err
	}
	var token tokenResponse
	if err := c.do("token "+grantType, req, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Code: "empty_token", Message: "token response without access token"}
	}
	return token.session(c.clock.Now()), nil
}

func (c *Client) signedIn(s *Session) {
	c.setSession(s)
	c.emit(authdomain.SignedIn(s.User.Principal()))
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

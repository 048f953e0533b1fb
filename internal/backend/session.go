package backend

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
)

// expiryMargin refreshes tokens slightly before the backend would reject them.
const expiryMargin = 10 * time.Second

// User is the account record returned by the auth API.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
}

// Confirmed reports whether the email address has been verified.
func (u User) Confirmed() bool {
	return u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero()
}

// Principal projects the account onto the page-level principal.
func (u User) Principal() authdomain.Principal {
	display := metadataString(u.UserMetadata, "full_name", "name")
	if display == "" {
		display, _, _ = strings.Cut(u.Email, "@")
	}
	return authdomain.Principal{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: display,
		AvatarURL:   metadataString(u.UserMetadata, "avatar_url", "picture"),
		Role:        u.Role,
	}
}

func metadataString(meta map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Session is an authenticated backend session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

func (s *Session) expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expiryMargin).Before(s.ExpiresAt)
}

// tokenResponse is the wire shape of every token grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

var claimsParser = jwt.NewParser(jwt.WithoutClaimsValidation())

// parseAccessClaims decodes the access token without verifying it; the
// backend verifies every request, the client only needs expiry and role.
func parseAccessClaims(token string) (*accessClaims, bool) {
	claims := &accessClaims{}
	if _, _, err := claimsParser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func (t tokenResponse) session(now time.Time) *Session {
	s := &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.User != nil {
		s.User = *t.User
	}

	if claims, ok := parseAccessClaims(t.AccessToken); ok {
		if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
		if s.User.ID == "" {
			s.User.ID = claims.Subject
		}
		if s.User.Email == "" {
			s.User.Email = claims.Email
		}
		if s.User.Role == "" {
			s.User.Role = claims.Role
		}
	}
	return s
}

// SessionStorage persists the session between page contexts.
type SessionStorage interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// MemoryStorage keeps the session for the lifetime of the process.
type MemoryStorage struct {
	mu      sync.Mutex
	session *Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryStorage) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		m.session = nil
		return nil
	}
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStorage) Clear() error {
	return m.Save(nil)
}

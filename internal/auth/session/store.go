// Package session holds the signed-in principal of a page context and fans
// changes out to UI listeners.
package session

import (
	"context"
	"sync"
	"time"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/backend"
	"go.uber.org/zap"
)

const profileTimeout = 10 * time.Second

// Backend is the part of the backend client the store depends on.
type Backend interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	FetchProfile(ctx context.Context, userID string) (authdomain.Profile, error)
	OnAuthStateChange(fn func(authdomain.SessionEvent)) func()
}

// Store is the in-memory holder of the current principal.
type Store struct {
	backend   Backend
	log       *zap.Logger
	principal *Observable[*authdomain.Principal]

	mu       sync.Mutex
	unlisten func()
}

func NewStore(b Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		backend:   b,
		log:       log.Named("session.store"),
		principal: NewObservable[*authdomain.Principal](nil),
	}
}

// Start begins listening for backend session events and performs the initial
// refresh. The refresh error is returned for logging only; the store is
// usable (signed out) either way.
func (s *Store) Start(ctx context.Context) (*authdomain.Principal, error) {
	s.mu.Lock()
	if s.unlisten == nil {
		eventCtx := context.WithoutCancel(ctx)
		s.unlisten = s.backend.OnAuthStateChange(func(ev authdomain.SessionEvent) {
			s.HandleEvent(eventCtx, ev)
		})
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Close stops listening for backend events and drops every subscriber.
func (s *Store) Close() {
	s.mu.Lock()
	unlisten := s.unlisten
	s.unlisten = nil
	s.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	s.principal.reset()
}

// Current returns a copy of the principal, or nil when signed out.
func (s *Store) Current() *authdomain.Principal {
	return s.principal.Get().Clone()
}

// Refresh re-reads the live session from the backend. Any backend error
// leaves the store signed out. Listeners are always notified.
func (s *Store) Refresh(ctx context.Context) (*authdomain.Principal, error) {
	sess, err := s.backend.GetSession(ctx)
	if err != nil {
		s.log.Warn("session refresh failed", zap.Error(err))
		s.principal.Set(nil)
		return nil, err
	}
	if sess == nil {
		s.principal.Set(nil)
		return nil, nil
	}

	p := s.withProfile(ctx, sess.User.Principal())
	s.principal.Set(&p)
	return p.Clone(), nil
}

// HandleEvent applies a backend session event directly, without querying
// the session again.
func (s *Store) HandleEvent(ctx context.Context, ev authdomain.SessionEvent) {
	switch ev.Kind {
	case authdomain.EventSignedIn:
		if ev.Principal == nil {
			s.log.Warn("signed-in event without principal")
			s.principal.Set(nil)
			return
		}
		p := s.withProfile(ctx, *ev.Principal)
		s.principal.Set(&p)
	case authdomain.EventSignedOut:
		s.principal.Set(nil)
	default:
		s.log.Debug("ignoring session event", zap.String("kind", string(ev.Kind)))
	}
}

// Clear drops the principal locally. Sign-out uses it so local state never
// outlives a failed revoke call.
func (s *Store) Clear() {
	s.principal.Set(nil)
}

// Subscribe registers fn and immediately invokes it with the current
// principal. Each invocation receives its own copy.
func (s *Store) Subscribe(fn func(*authdomain.Principal)) Subscription {
	return s.principal.Subscribe(func(p *authdomain.Principal) {
		fn(p.Clone())
	})
}

func (s *Store) Unsubscribe(sub Subscription) {
	s.principal.Unsubscribe(sub)
}

// withProfile merges stored profile attributes into p. Failures are logged
// and the bare principal is kept.
func (s *Store) withProfile(ctx context.Context, p authdomain.Principal) authdomain.Principal {
	if p.ID == "" {
		return p
	}
	ctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()

	profile, err := s.backend.FetchProfile(ctx, p.ID)
	if err != nil {
		s.log.Info("profile merge skipped", zap.String("user_id", p.ID), zap.Error(err))
		return p
	}
	return p.Merge(profile)
}

// Package domain contains the types shared by the client-side auth layer.
package domain

import "strings"

// Principal is the authenticated user as known to the page, optionally
// enriched with stored profile attributes.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Role        string `json:"role"`
}

// Profile holds the attributes stored in the profiles collection.
type Profile struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

// Merge returns a copy of p augmented with non-empty profile attributes.
func (p Principal) Merge(profile Profile) Principal {
	if name := strings.TrimSpace(profile.FullName); name != "" {
		p.DisplayName = name
	}
	if avatar := strings.TrimSpace(profile.AvatarURL); avatar != "" {
		p.AvatarURL = avatar
	}
	if role := strings.TrimSpace(profile.Role); role != "" {
		p.Role = role
	}
	return p
}

// Clone returns a detached copy so listeners cannot mutate store state.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

type EventKind string

const (
	EventSignedIn  EventKind = "SIGNED_IN"
	EventSignedOut EventKind = "SIGNED_OUT"
)

// SessionEvent is emitted by the backend client whenever its session changes.
// Principal is set only for EventSignedIn.
type SessionEvent struct {
	Kind      EventKind
	Principal *Principal
}

func SignedIn(p Principal) SessionEvent {
	return SessionEvent{Kind: EventSignedIn, Principal: &p}
}

func SignedOut() SessionEvent {
	return SessionEvent{Kind: EventSignedOut}
}

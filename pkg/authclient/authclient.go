// Package authclient is the Go client SDK for the eduro identity service. It
// wraps the raw HTTP endpoints with a Manager that keeps a last-known-good
// session, coalesces concurrent refreshes, and recovers from transient
// provider failures without ever fabricating a session.
package authclient

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors surfaced by providers.
var (
	// ErrNoSession means the provider has no current session. It is an
	// ordinary signed-out state, not a failure.
	ErrNoSession = errors.New("authclient: no session")

	// ErrInvalidRefreshToken marks a refresh token the provider rejected
	// outright. It is the only unrecoverable session error: the Manager
	// responds with a forced sign-out rather than a retry.
	ErrInvalidRefreshToken = errors.New("authclient: invalid refresh token")
)

// User is the session subject as issued by the provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is the provider-issued token bundle. The Manager only ever caches
// sessions obtained from a provider; it never constructs one.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	User         User      `json:"user"`
}

// TimeValid reports whether the session is usable at the given instant. A
// zero ExpiresAt means the expiry is unknown and the session is treated as
// valid.
func (s *Session) TimeValid(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.ExpiresAt.IsZero() || s.ExpiresAt.After(now)
}

// EventType identifies a provider auth-state change.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventTokenRefreshed EventType = "token_refreshed"
	EventSignedOut      EventType = "signed_out"
	EventUserUpdated    EventType = "user_updated"
)

// Event is a provider auth-state change pushed to subscribers. Session is nil
// for sign-out events.
type Event struct {
	Type    EventType
	Session *Session
}

// Provider is the identity backend the Manager delegates to.
type Provider interface {
	// CurrentSession returns the provider's view of the active session, or
	// ErrNoSession when there is none.
	CurrentSession(ctx context.Context) (*Session, error)

	// Refresh exchanges the refresh token for a new session, rotating both
	// tokens. Returns ErrInvalidRefreshToken when the token was rejected.
	Refresh(ctx context.Context) (*Session, error)

	// SignOut revokes the current session. Idempotent.
	SignOut(ctx context.Context) error

	// Subscribe registers a listener for auth-state events and returns its
	// unsubscribe handle. Events are delivered in emission order.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Notice is a user-visible message raised by the Manager.
type Notice struct {
	Title       string
	Description string
	Variant     string
}

// Notifier surfaces user-visible notices. Implementations are supplied by the
// embedding application.
type Notifier interface {
	Notify(notice Notice)
}

// Navigator performs full navigation on forced sign-out.
type Navigator interface {
	Redirect(path string)
}

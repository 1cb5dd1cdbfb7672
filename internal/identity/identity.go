package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is the subject of a verified session.
type User struct {
	ID    uuid.UUID
	Email string
}

// Session is the token bundle issued to a signed-in browser context. The
// service owns the authoritative copy; everything handed to clients is a
// snapshot.
type Session struct {
	SessionID    uuid.UUID
	User         User
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the access token expiry. A zero value means the token
	// does not expire (or the expiry is unknown).
	ExpiresAt time.Time
}

// TimeValid reports whether the session's access token is still usable.
// Sessions without a known expiry are treated as valid.
func (s Session) TimeValid(now time.Time) bool {
	return s.ExpiresAt.IsZero() || s.ExpiresAt.After(now)
}

// Record is the server-side session state persisted in the session store.
type Record struct {
	SessionID    uuid.UUID `json:"session_id"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Device       string    `json:"device"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	LastRefresh  time.Time `json:"last_refresh"`
}

var (
	// ErrInvalidCredentials is returned when email/password verification fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when an access token fails verification or
	// its session no longer exists.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrInvalidRefreshToken is returned when a refresh token is unknown,
	// already consumed, or its session was revoked. This is the only fatal
	// session condition: callers must treat it as a forced sign-out.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// SessionStore persists server-side session records. Implementations must
// make ConsumeRefreshToken one-shot: a refresh token that has been consumed
// once must never resolve again.
type SessionStore interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Get(ctx context.Context, sessionID uuid.UUID) (Record, error)
	// ConsumeRefreshToken atomically invalidates the token and returns the
	// session it belonged to. Unknown or already-consumed tokens yield
	// sentinel.ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, token string) (Record, error)
	SaveRefreshToken(ctx context.Context, token string, sessionID uuid.UUID, ttl time.Duration) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// newRefreshToken creates a cryptographically secure random token
// (32 bytes, base64url without padding).
func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

package testutil

import (
	"net/http"

	"github.com/google/uuid"

	"eduro/internal/roles"
	"eduro/pkg/requestcontext"
)

// WithIdentity attaches an authenticated identity to the request context,
// simulating the gate middleware for handler tests. Invalid user IDs are
// silently ignored and the request is returned unchanged.
func WithIdentity(req *http.Request, userID string, role roles.Role) *http.Request {
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return req
	}
	ctx := requestcontext.WithIdentity(req.Context(), requestcontext.Identity{
		Authenticated: true,
		UserID:        parsed,
		Role:          role,
	})
	return req.WithContext(ctx)
}

// Unauthenticated attaches an explicit unauthenticated identity, matching
// what the gate injects when verification fails.
func Unauthenticated(req *http.Request) *http.Request {
	ctx := requestcontext.WithIdentity(req.Context(), requestcontext.Identity{})
	return req.WithContext(ctx)
}

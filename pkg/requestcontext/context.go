// Package requestcontext provides HTTP-independent context accessors for
// request-scoped identity values.
//
// The gate middleware sets these values; route protection and handlers
// consume them. Keeping this package free of net/http dependencies lets
// services import only what they need.
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"

	"eduro/internal/roles"
)

// Identity is the gate's per-request outcome: who the request belongs to and
// what they may do. The zero value means unauthenticated.
type Identity struct {
	Authenticated bool
	UserID        uuid.UUID
	Email         string
	Role          roles.Role
}

type identityKey struct{}

// ContextKeyIdentity is exported for tests that need context.WithValue.
var ContextKeyIdentity = identityKey{}

// WithIdentity injects the gate outcome into the context.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, ident)
}

// IdentityFrom retrieves the gate outcome from the context. Returns the zero
// Identity (unauthenticated) if the gate did not run.
func IdentityFrom(ctx context.Context) Identity {
	if ident, ok := ctx.Value(ContextKeyIdentity).(Identity); ok {
		return ident
	}
	return Identity{}
}

type timeKey struct{}

// WithTime pins a request-scoped "now" so every operation within one request
// observes the same instant.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}

// Now returns the request-scoped time, falling back to the wall clock when no
// middleware pinned one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

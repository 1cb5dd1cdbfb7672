package roles

import (
	"context"

	"github.com/google/uuid"
)

// Role is the platform account type. Authorization downstream of the gate is
// keyed on this value, so unknown or failed lookups must always degrade to
// the least privileged role, never an elevated one.
type Role string

const (
	RoleStudent     Role = "student"
	RoleTeacher     Role = "teacher"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// Default is the least privileged role, used whenever a lookup fails or the
// stored value is unrecognized.
const Default = RoleStudent

// Valid reports whether r is one of the known platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleCoordinator, RoleAdmin:
		return true
	}
	return false
}

// Parse normalizes a stored role value, falling back to Default for anything
// unrecognized.
func Parse(s string) Role {
	r := Role(s)
	if !r.Valid() {
		return Default
	}
	return r
}

// Store resolves the platform role for a user.
//
//go:generate mockgen -source=roles.go -destination=mocks/mocks.go -package=mocks Store
type Store interface {
	// FetchRole returns the user's role. Implementations return
	// sentinel.ErrNotFound (wrapped or bare) when the user has no profile;
	// callers treat any error as "use the default role".
	FetchRole(ctx context.Context, userID uuid.UUID) (Role, error)
}

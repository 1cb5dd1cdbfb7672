package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"eduro/pkg/platform/sentinel"
	"eduro/pkg/platform/tx"
)

// PostgresStore reads roles from the profiles table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed role store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction from context when one is open, otherwise the pool.
func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// FetchRole returns the role recorded on the user's profile.
func (s *PostgresStore) FetchRole(ctx context.Context, userID uuid.UUID) (Role, error) {
	var role string
	err := s.q(ctx).QueryRowContext(ctx, `SELECT role FROM profiles WHERE user_id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Default, fmt.Errorf("fetch role for %s: %w", userID, sentinel.ErrNotFound)
		}
		return Default, fmt.Errorf("fetch role for %s: %w", userID, err)
	}
	return Parse(role), nil
}

// Migrate creates the profiles table if it does not exist. Used by tests and
// local bootstrap; production schema is managed externally.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			user_id UUID PRIMARY KEY,
			role TEXT NOT NULL DEFAULT 'student',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate profiles: %w", err)
	}
	return nil
}

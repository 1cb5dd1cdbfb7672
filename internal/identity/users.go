package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"eduro/pkg/platform/sentinel"
)

// UserRecord is the stored account credential row.
type UserRecord struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
}

// UserStore resolves account records for credential verification.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
}

// PgxUserStore reads accounts from PostgreSQL via a pgx pool.
type PgxUserStore struct {
	pool *pgxpool.Pool
}

func NewPgxUserStore(pool *pgxpool.Pool) *PgxUserStore {
	return &PgxUserStore{pool: pool}
}

func (s *PgxUserStore) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	var rec UserRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = $1`, email,
	).Scan(&rec.ID, &rec.Email, &rec.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, sentinel.ErrNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by email: %w", err)
	}
	return rec, nil
}

// InMemoryUserStore keeps accounts in a map for tests and local development.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]UserRecord)}
}

// AddUser hashes the password and stores the account.
func (s *InMemoryUserStore) AddUser(email, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.users[email] = UserRecord{ID: id, Email: email, PasswordHash: string(hash)}
	return id, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.users[email]; ok {
		return rec, nil
	}
	return UserRecord{}, sentinel.ErrNotFound
}

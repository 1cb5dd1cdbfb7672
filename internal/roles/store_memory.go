package roles

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"eduro/pkg/platform/sentinel"
)

// InMemoryStore keeps role assignments in a map. It intentionally favors
// clarity over performance and exists for tests and local bootstrap.
type InMemoryStore struct {
	mu    sync.RWMutex
	roles map[uuid.UUID]Role
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{roles: make(map[uuid.UUID]Role)}
}

func (s *InMemoryStore) Assign(userID uuid.UUID, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = role
}

func (s *InMemoryStore) FetchRole(_ context.Context, userID uuid.UUID) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if role, ok := s.roles[userID]; ok {
		return role, nil
	}
	return Default, sentinel.ErrNotFound
}

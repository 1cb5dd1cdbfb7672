package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"eduro/pkg/platform/sentinel"
)

// InMemorySessionStore keeps session records in maps. It intentionally favors
// clarity over performance and exists for tests and local development.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Record
	refresh  map[string]uuid.UUID
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[uuid.UUID]Record),
		refresh:  make(map[string]uuid.UUID),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, rec Record, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.SessionID] = rec
	return nil
}

func (s *InMemorySessionStore) Get(_ context.Context, sessionID uuid.UUID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.sessions[sessionID]; ok {
		return rec, nil
	}
	return Record{}, sentinel.ErrNotFound
}

func (s *InMemorySessionStore) ConsumeRefreshToken(_ context.Context, token string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID, ok := s.refresh[token]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	delete(s.refresh, token)
	if rec, ok := s.sessions[sessionID]; ok {
		return rec, nil
	}
	return Record{}, sentinel.ErrNotFound
}

func (s *InMemorySessionStore) SaveRefreshToken(_ context.Context, token string, sessionID uuid.UUID, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token] = sessionID
	return nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[sessionID]; ok {
		delete(s.refresh, rec.RefreshToken)
		delete(s.sessions, sessionID)
	}
	return nil
}

package memory

import (
	"context"
	"sync"

	audit "eduro/pkg/platform/audit"
)

// InMemoryStore keeps audit events in a slice. It intentionally favors
// clarity over performance and exists for tests and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByUser returns all events recorded for the given user ID.
func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Events returns a snapshot of everything appended so far.
func (s *InMemoryStore) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

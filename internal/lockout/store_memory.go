package lockout

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps lockout records in a map with lazy expiry.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]memoryEntry),
		clock:   time.Now,
	}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[key]
	if !ok {
		return Record{}, nil
	}
	if s.clock().After(entry.expiresAt) {
		delete(s.records, key)
		return Record{}, nil
	}
	return entry.rec, nil
}

func (s *InMemoryStore) Put(_ context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key] = memoryEntry{rec: rec, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

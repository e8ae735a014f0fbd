package session

import (
	"context"
	"sync"
)

// InMemoryStore keeps the session in process memory. It does not survive restarts.
type InMemoryStore struct {
	mu      sync.RWMutex
	session Session
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a store, optionally seeded with an initial session.
func NewInMemoryStore(initial ...Session) *InMemoryStore {
	s := &InMemoryStore{}
	if len(initial) > 0 && initial[0].Validate() == nil {
		s.session = initial[0]
	}
	return s
}

func (s *InMemoryStore) Get(context.Context) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *InMemoryStore) Set(_ context.Context, session Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	return nil
}

func (s *InMemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
	return nil
}

// Package memory is the audit sink used with in-memory storage and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	id "civicpulse/pkg/domain"
	audit "civicpulse/pkg/platform/audit"
)

// InMemoryStore keeps events in arrival order.
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

// ListByUser returns the user's events newest first, matching the Postgres sink.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range slices.Backward(s.events) {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

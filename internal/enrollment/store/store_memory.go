package store

import (
	"context"
	"sync"

	"civicpulse/internal/enrollment/models"
	id "civicpulse/pkg/domain"
	"civicpulse/pkg/platform/sentinel"
)

// InMemoryStore keeps enrollments in a map. Each operation is atomic under
// the store lock; per-user sequencing across operations is the caller's
// EnrollmentTx.
type InMemoryStore struct {
	mu          sync.RWMutex
	enrollments map[id.UserID]*models.Enrollment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{enrollments: make(map[id.UserID]*models.Enrollment)}
}

func (s *InMemoryStore) Upsert(_ context.Context, enrollment *models.Enrollment) (bool, error) {
	stored := *enrollment
	stored.Template = append([]byte(nil), enrollment.Template...)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced := s.enrollments[enrollment.UserID]
	s.enrollments[enrollment.UserID] = &stored
	return replaced, nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enrollment, ok := s.enrollments[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *enrollment
	out.Template = append([]byte(nil), enrollment.Template...)
	return &out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enrollments[userID]
	delete(s.enrollments, userID)
	return ok, nil
}

// Count returns the number of active enrollments.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.enrollments)
}

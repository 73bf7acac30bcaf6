package store

import (
	"context"
	"sync"

	"civicpulse/internal/rating/models"
	id "civicpulse/pkg/domain"
	"civicpulse/pkg/platform/sentinel"
)

// InMemoryStore keeps ratings in a map and maintains per-score counts under
// the same lock, so a counts read is a point-in-time snapshot of the ledger.
type InMemoryStore struct {
	mu      sync.RWMutex
	ratings map[id.UserID]*models.Rating
	counts  models.ScoreCounts
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{ratings: make(map[id.UserID]*models.Rating)}
}

// Upsert inserts the rating or overwrites score, comment and UpdatedAt of the
// existing one, keeping its CreatedAt.
func (s *InMemoryStore) Upsert(_ context.Context, rating *models.Rating) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ratings[rating.UserID]
	if !ok {
		stored := *rating
		s.ratings[rating.UserID] = &stored
		s.counts.Add(rating.Score, 1)
		return true, nil
	}

	s.counts.Add(existing.Score, -1)
	s.counts.Add(rating.Score, 1)
	existing.Score = rating.Score
	existing.Comment = rating.Comment
	existing.UpdatedAt = rating.UpdatedAt
	return false, nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rating, ok := s.ratings[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *rating
	return &out, nil
}

func (s *InMemoryStore) ScoreCounts(_ context.Context) (models.ScoreCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts, nil
}

// Count returns the number of stored ratings.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ratings)
}

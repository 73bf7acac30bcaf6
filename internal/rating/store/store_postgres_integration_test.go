//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicpulse/internal/rating/models"
	"civicpulse/internal/rating/store"
	id "civicpulse/pkg/domain"
	"civicpulse/pkg/platform/sentinel"
	"civicpulse/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "ratings"))
}

func newRating(userID string, score int, comment string) *models.Rating {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Rating{UserID: id.UserID(userID), Score: score, Comment: comment, CreatedAt: now, UpdatedAt: now}
}

func (s *PostgresStoreSuite) TestUpsertKeepsCreatedAt() {
	ctx := context.Background()
	first := newRating("citizen-1", 3, "")
	created, err := s.store.Upsert(ctx, first)
	s.Require().NoError(err)
	s.True(created)

	second := newRating("citizen-1", 4, "ok")
	second.CreatedAt = second.CreatedAt.Add(time.Hour)
	second.UpdatedAt = second.CreatedAt
	created, err = s.store.Upsert(ctx, second)
	s.Require().NoError(err)
	s.False(created)

	got, err := s.store.FindByUser(ctx, "citizen-1")
	s.Require().NoError(err)
	s.Equal(4, got.Score)
	s.Equal("ok", got.Comment)
	s.True(first.CreatedAt.Equal(got.CreatedAt))
	s.True(second.UpdatedAt.Equal(got.UpdatedAt))
}

func (s *PostgresStoreSuite) TestEmptyCommentIsStoredAsNull() {
	ctx := context.Background()
	_, err := s.store.Upsert(ctx, newRating("citizen-2", 1, ""))
	s.Require().NoError(err)

	var isNull bool
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT comment IS NULL FROM ratings WHERE user_id = $1`, "citizen-2").Scan(&isNull))
	s.True(isNull)
}

// TestConcurrentSubmissionsLeaveOneRow fires simultaneous upserts for one user.
func (s *PostgresStoreSuite) TestConcurrentSubmissionsLeaveOneRow() {
	ctx := context.Background()
	const goroutines = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.store.Upsert(ctx, newRating("citizen-3", i%5+1, ""))
			s.NoError(err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, created)
	var rows int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ratings WHERE user_id = $1`, "citizen-3").Scan(&rows))
	s.Equal(1, rows)
}

func (s *PostgresStoreSuite) TestScoreCounts() {
	ctx := context.Background()
	for i, score := range []int{5, 5, 4, 3, 3, 3} {
		_, err := s.store.Upsert(ctx, newRating(fmt.Sprintf("u-%d", i), score, ""))
		s.Require().NoError(err)
	}

	counts, err := s.store.ScoreCounts(ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), counts.Of(3))
	s.Equal(int64(1), counts.Of(4))
	s.Equal(int64(2), counts.Of(5))
	s.Equal(int64(0), counts.Of(1))
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByUser(context.Background(), "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

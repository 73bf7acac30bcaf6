//go:build integration

package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicpulse/internal/rating/models"
	"civicpulse/internal/rating/stats"
	"civicpulse/pkg/testutil/containers"
)

type staticSource struct{ counts models.ScoreCounts }

func (s *staticSource) ScoreCounts(context.Context) (models.ScoreCounts, error) { return s.counts, nil }

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *stats.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = stats.NewRedisCache(s.redis.Client, stats.WithTTL(time.Minute))
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripAndInvalidate() {
	ctx := context.Background()

	gen, err := s.cache.Generation(ctx)
	s.Require().NoError(err)
	s.Equal(int64(0), gen)

	cached, err := s.cache.Get(ctx, gen)
	s.Require().NoError(err)
	s.Nil(cached)

	var counts models.ScoreCounts
	counts.Add(4, 2)
	s.Require().NoError(s.cache.Set(ctx, gen, stats.FromCounts(counts)))

	cached, err = s.cache.Get(ctx, gen)
	s.Require().NoError(err)
	s.Require().NotNil(cached)
	s.Equal(int64(2), cached.Count)
	s.Equal(int64(2), cached.Histogram[4])

	s.Require().NoError(s.cache.Invalidate(ctx))
	gen, err = s.cache.Generation(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), gen)

	cached, err = s.cache.Get(ctx, gen)
	s.Require().NoError(err)
	s.Nil(cached)
}

func (s *RedisCacheSuite) TestAggregatorUsesRedis() {
	ctx := context.Background()
	source := &staticSource{}
	source.counts.Add(5, 1)
	agg := stats.New(source, stats.WithCache(s.cache))

	first, err := agg.Compute(ctx)
	s.Require().NoError(err)
	s.Equal(5.0, first.Mean)

	source.counts.Add(1, 1)
	s.Require().NoError(agg.Invalidate(ctx))

	second, err := agg.Compute(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), second.Count)
	s.Equal(3.0, second.Mean)
}

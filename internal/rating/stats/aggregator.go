// Package stats computes the approval-rating aggregate shown on the admin
// dashboard.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"civicpulse/internal/rating/metrics"
	"civicpulse/internal/rating/models"
	dErrors "civicpulse/pkg/domain-errors"
)

const defaultTimeout = 5 * time.Second

// CountSource yields a point-in-time snapshot of per-score counts.
type CountSource interface {
	ScoreCounts(ctx context.Context) (models.ScoreCounts, error)
}

// Cache stores aggregates per generation. Invalidate starts a new generation,
// so an aggregate computed before a submission can never be served after it.
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, generation int64) (*Aggregate, error)
	Set(ctx context.Context, generation int64, agg Aggregate) error
	Invalidate(ctx context.Context) error
}

// Aggregator computes aggregates on demand. Concurrent callers of the same
// generation share one computation.
type Aggregator struct {
	source     CountSource
	cache      Cache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	group      singleflight.Group
	generation atomic.Int64
	timeout    time.Duration
}

type Option func(*Aggregator)

func WithCache(cache Cache) Option {
	return func(a *Aggregator) { a.cache = cache }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithTimeout bounds one shared computation, cache round trips included.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(source CountSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:  source,
		logger:  slog.Default(),
		tracer:  otel.Tracer("civicpulse/rating/stats"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute returns count, mean and histogram over the whole ledger.
func (a *Aggregator) Compute(ctx context.Context) (_ Aggregate, err error) {
	ctx, span := a.tracer.Start(ctx, "rating.stats.Compute")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}()

	key := strconv.FormatInt(a.generation.Load(), 10)
	results := a.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so no single caller's cancellation applies.
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		return a.compute(sharedCtx)
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return Aggregate{}, res.Err
		}
		return cloneAggregate(res.Val.(Aggregate)), nil
	case <-ctx.Done():
		return Aggregate{}, dErrors.Wrap(ctx.Err(), dErrors.CodeStorageUnavailable, "compute rating stats")
	}
}

func (a *Aggregator) compute(ctx context.Context) (Aggregate, error) {
	generation, cached := a.lookup(ctx)
	if cached != nil {
		return *cached, nil
	}

	start := time.Now()
	counts, err := a.source.ScoreCounts(ctx)
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return Aggregate{}, err
		}
		return Aggregate{}, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "compute rating stats")
	}
	agg := FromCounts(counts)
	a.metrics.ObserveStatsCompute(time.Since(start))

	if a.cache != nil && generation >= 0 {
		if err := a.cache.Set(ctx, generation, agg); err != nil {
			a.logger.WarnContext(ctx, "failed to cache rating stats", "error", err)
		}
	}
	return agg, nil
}

// lookup returns the cache generation (-1 when unknown) and a cached
// aggregate if one exists. Cache failures fall through to the ledger.
func (a *Aggregator) lookup(ctx context.Context) (int64, *Aggregate) {
	if a.cache == nil {
		return -1, nil
	}
	generation, err := a.cache.Generation(ctx)
	if err != nil {
		a.metrics.IncrementStatsCache("error")
		a.logger.WarnContext(ctx, "failed to read rating stats cache generation", "error", err)
		return -1, nil
	}
	cached, err := a.cache.Get(ctx, generation)
	switch {
	case err != nil:
		a.metrics.IncrementStatsCache("error")
		a.logger.WarnContext(ctx, "failed to read rating stats cache", "error", err)
		return generation, nil
	case cached == nil:
		a.metrics.IncrementStatsCache("miss")
		return generation, nil
	default:
		a.metrics.IncrementStatsCache("hit")
		return generation, cached
	}
}

// Invalidate discards cached aggregates after a ledger write. Callers that
// start Compute afterwards never join a computation started before it.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	a.generation.Add(1)
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(ctx)
}

func cloneAggregate(agg Aggregate) Aggregate {
	out := agg
	out.Histogram = make(map[int]int64, len(agg.Histogram))
	for k, v := range agg.Histogram {
		out.Histogram[k] = v
	}
	return out
}

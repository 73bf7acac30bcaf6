package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civicpulse/internal/rating/metrics"
	"civicpulse/internal/rating/models"
	id "civicpulse/pkg/domain"
	dErrors "civicpulse/pkg/domain-errors"
	audit "civicpulse/pkg/platform/audit"
	"civicpulse/pkg/platform/sentinel"
	"civicpulse/pkg/platform/tx"
	"civicpulse/pkg/requestcontext"
)

// Store persists at most one rating per user.
type Store interface {
	// Upsert inserts or updates in place and reports whether a row was created.
	Upsert(ctx context.Context, rating *models.Rating) (created bool, err error)
	// FindByUser returns sentinel.ErrNotFound when the user has not rated.
	FindByUser(ctx context.Context, userID id.UserID) (*models.Rating, error)
}

// StatsInvalidator drops cached aggregates after a ledger write.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the rating ledger.
type Service struct {
	store           Store
	tx              RatingTx
	stats           StatsInvalidator
	logger          *slog.Logger
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
	maxCommentChars int
	storageTimeout  time.Duration
	tracer          trace.Tracer
}

type Option func(*Service)

func WithTx(t RatingTx) Option {
	return func(s *Service) { s.tx = t }
}

func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *Service) { s.stats = inv }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithMaxCommentChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCommentChars = n
		}
	}
}

// WithStorageTimeout bounds reads that run outside a user transaction.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storageTimeout = d
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		maxCommentChars: models.DefaultMaxCommentChars,
		storageTimeout:  tx.DefaultTimeout,
		tracer:          otel.Tracer("civicpulse/rating"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(tx.NewShardedLocker(tx.DefaultTimeout))
	}
	return s
}

// SubmitRating validates and upserts the user's rating. Invalid input is
// rejected before anything is written.
func (s *Service) SubmitRating(ctx context.Context, userID id.UserID, score int, comment string) (_ models.SubmitResult, err error) {
	ctx, span := s.tracer.Start(ctx, "rating.SubmitRating")
	defer func() { endSpan(span, err) }()

	rating, err := models.NewRating(userID, score, comment, s.maxCommentChars, requestcontext.Now(ctx))
	if err != nil {
		return models.SubmitResult{}, err
	}

	var created bool
	err = s.tx.RunInTx(ctx, userID, func(ctx context.Context) error {
		var upsertErr error
		created, upsertErr = s.store.Upsert(ctx, rating)
		return upsertErr
	})
	if err != nil {
		return models.SubmitResult{}, storageError(err, "submit rating")
	}

	s.invalidateStats(ctx)
	s.metrics.IncrementSubmission(created)
	s.emit(ctx, userID, created)
	return models.SubmitResult{Created: created}, nil
}

// GetRating returns the user's rating, or nil when they have not rated.
func (s *Service) GetRating(ctx context.Context, userID id.UserID) (_ *models.Rating, err error) {
	ctx, span := s.tracer.Start(ctx, "rating.GetRating")
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	rating, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, storageError(err, "load rating")
	}
	return rating, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to invalidate rating stats",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) emit(ctx context.Context, userID id.UserID, created bool) {
	decision := "updated"
	if created {
		decision = "created"
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(audit.EventRatingSubmitted),
			"user_id", userID.String(),
			"decision", decision,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:   userID,
		Action:   string(audit.EventRatingSubmitted),
		Category: audit.EventRatingSubmitted.Category(),
		Decision: decision,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(audit.EventRatingSubmitted),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func storageError(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, msg)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

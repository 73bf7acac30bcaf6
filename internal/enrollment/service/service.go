package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civicpulse/internal/enrollment/metrics"
	"civicpulse/internal/enrollment/models"
	id "civicpulse/pkg/domain"
	dErrors "civicpulse/pkg/domain-errors"
	audit "civicpulse/pkg/platform/audit"
	"civicpulse/pkg/platform/sentinel"
	"civicpulse/pkg/platform/tx"
	"civicpulse/pkg/requestcontext"
)

// DefaultMaxTemplateBytes bounds a stored template.
const DefaultMaxTemplateBytes = 5 << 20

// Store persists at most one enrollment per user.
type Store interface {
	// Upsert inserts or replaces the enrollment and reports whether one existed.
	Upsert(ctx context.Context, enrollment *models.Enrollment) (replaced bool, err error)
	// FindByUser returns sentinel.ErrNotFound when the user has no enrollment.
	FindByUser(ctx context.Context, userID id.UserID) (*models.Enrollment, error)
	// Delete removes the enrollment and reports whether one existed.
	Delete(ctx context.Context, userID id.UserID) (deleted bool, err error)
}

// Verifier compares a probe against a stored template. Matching happens
// outside this service.
type Verifier interface {
	Verify(ctx context.Context, template, probe []byte) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the enrollment lifecycle: register (create or replace),
// status, revoke and verify.
type Service struct {
	store            Store
	tx               EnrollmentTx
	verifier         Verifier
	logger           *slog.Logger
	auditPublisher   AuditPublisher
	metrics          *metrics.Metrics
	maxTemplateBytes int
	storageTimeout   time.Duration
	tracer           trace.Tracer
}

type Option func(*Service)

func WithTx(t EnrollmentTx) Option {
	return func(s *Service) { s.tx = t }
}

func WithVerifier(v Verifier) Option {
	return func(s *Service) { s.verifier = v }
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

func WithMaxTemplateBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTemplateBytes = n
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

// New constructs a Service. Without WithTx, writes are serialized per user by
// an in-process sharded lock.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		maxTemplateBytes: DefaultMaxTemplateBytes,
		storageTimeout:   tx.DefaultTimeout,
		tracer:           otel.Tracer("civicpulse/enrollment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(tx.NewShardedLocker(tx.DefaultTimeout))
	}
	return s
}

// Register stores template as the user's only active enrollment, replacing
// any previous one in a single write so readers never see a gap.
func (s *Service) Register(ctx context.Context, userID id.UserID, template []byte) (err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.Register")
	defer func() { endSpan(span, err) }()

	if err := s.validatePayload(template, "template"); err != nil {
		return err
	}

	enrollment := models.NewEnrollment(userID, template, requestcontext.Now(ctx))
	var replaced bool
	err = s.tx.RunInTx(ctx, userID, func(ctx context.Context) error {
		var upsertErr error
		replaced, upsertErr = s.store.Upsert(ctx, enrollment)
		return upsertErr
	})
	if err != nil {
		return storageError(err, "register enrollment")
	}

	event := audit.EventEnrollmentRegistered
	if replaced {
		event = audit.EventEnrollmentReplaced
	}
	s.emit(ctx, userID, event, "")
	s.metrics.IncrementRegistered(replaced, len(template))
	return nil
}

// StatusOf reports whether the user has an active enrollment. A missing
// enrollment is a valid absent result.
func (s *Service) StatusOf(ctx context.Context, userID id.UserID) (_ models.EnrollmentStatus, err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.StatusOf")
	defer func() { endSpan(span, err) }()

	enrollment, err := s.find(ctx, userID)
	if err != nil {
		return models.EnrollmentStatus{}, err
	}
	return models.StatusOf(enrollment), nil
}

// Revoke deletes the user's enrollment. Revoking an absent enrollment succeeds.
func (s *Service) Revoke(ctx context.Context, userID id.UserID) (err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.Revoke")
	defer func() { endSpan(span, err) }()

	var deleted bool
	err = s.tx.RunInTx(ctx, userID, func(ctx context.Context) error {
		var deleteErr error
		deleted, deleteErr = s.store.Delete(ctx, userID)
		return deleteErr
	})
	if err != nil {
		return storageError(err, "revoke enrollment")
	}

	if deleted {
		s.emit(ctx, userID, audit.EventEnrollmentRevoked, "")
		s.metrics.IncrementRevoked()
	}
	return nil
}

// Verify asks the external verifier whether probe matches the stored
// template. Users without an enrollment never match and the verifier is not called.
func (s *Service) Verify(ctx context.Context, userID id.UserID, probe []byte) (matched bool, err error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.Verify")
	defer func() { endSpan(span, err) }()

	if err := s.validatePayload(probe, "probe"); err != nil {
		return false, err
	}

	enrollment, err := s.find(ctx, userID)
	if err != nil {
		return false, err
	}
	if enrollment == nil {
		s.metrics.IncrementVerification("absent")
		return false, nil
	}
	if s.verifier == nil {
		return false, dErrors.New(dErrors.CodeUnavailable, "verifier is not configured")
	}

	matched, err = s.verifier.Verify(ctx, enrollment.Template, probe)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "verifier unreachable")
	}

	decision := "not_matched"
	if matched {
		decision = "matched"
	}
	s.emit(ctx, userID, audit.EventEnrollmentVerified, decision)
	s.metrics.IncrementVerification(decision)
	return matched, nil
}

func (s *Service) find(ctx context.Context, userID id.UserID) (*models.Enrollment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	enrollment, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, storageError(err, "load enrollment")
	}
	return enrollment, nil
}

func (s *Service) validatePayload(payload []byte, name string) error {
	if len(payload) == 0 {
		return dErrors.Invalid(dErrors.ReasonInvalidPayload, name+" must not be empty")
	}
	if len(payload) > s.maxTemplateBytes {
		return dErrors.Invalid(dErrors.ReasonInvalidPayload,
			fmt.Sprintf("%s exceeds %d bytes", name, s.maxTemplateBytes))
	}
	return nil
}

func (s *Service) emit(ctx context.Context, userID id.UserID, event audit.AuditEvent, decision string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:   userID,
		Action:   string(event),
		Category: event.Category(),
		Decision: decision,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// storageError classifies store failures. Errors already carrying a code
// (lock timeouts) pass through; everything else is storage_unavailable.
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

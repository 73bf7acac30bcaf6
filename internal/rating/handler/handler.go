package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicpulse/internal/rating/models"
	"civicpulse/internal/rating/stats"
	id "civicpulse/pkg/domain"
	dErrors "civicpulse/pkg/domain-errors"
	"civicpulse/pkg/platform/httputil"
	"civicpulse/pkg/requestcontext"
)

// Service defines the rating ledger operations exposed over HTTP.
type Service interface {
	SubmitRating(ctx context.Context, userID id.UserID, score int, comment string) (models.SubmitResult, error)
	GetRating(ctx context.Context, userID id.UserID) (*models.Rating, error)
}

// StatsService computes the dashboard aggregate.
type StatsService interface {
	Compute(ctx context.Context) (stats.Aggregate, error)
}

// Handler handles rating endpoints.
type Handler struct {
	logger       *slog.Logger
	ratings      Service
	stats        StatsService
	maxBodyBytes int64
}

// New creates a new rating Handler. Request bodies are capped to fit a
// comment of maxCommentChars characters even when every one is written as
// an escaped surrogate pair (12 bytes).
func New(ratings Service, statsService StatsService, logger *slog.Logger, maxCommentChars int) *Handler {
	if maxCommentChars <= 0 {
		maxCommentChars = models.DefaultMaxCommentChars
	}
	return &Handler{
		logger:       logger,
		ratings:      ratings,
		stats:        statsService,
		maxBodyBytes: int64(maxCommentChars)*12 + 4096,
	}
}

// Register registers the citizen routes. Authentication is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ratings/me", h.HandleGetMyRating)
	r.Put("/ratings/me", h.HandleSubmitRating)
}

// RegisterAdmin registers the administrative routes. The caller applies admin auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/ratings/stats", h.HandleGetStats)
}

func (h *Handler) HandleGetMyRating(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	rating, err := h.ratings.GetRating(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load rating", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRatingResponse(rating))
}

func (h *Handler) HandleSubmitRating(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req SubmitRatingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid submit rating request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Invalid(dErrors.ReasonInvalidPayload, "invalid request body"))
		return
	}
	score, comment, err := req.Normalize()
	if err != nil {
		h.logFailure(ctx, "invalid submit rating request", err)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.ratings.SubmitRating(ctx, userID, score, comment)
	if err != nil {
		h.logFailure(ctx, "failed to submit rating", err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, SubmitRatingResponse{Created: result.Created})
}

func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agg, err := h.stats.Compute(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to compute rating stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(agg))
}

func (h *Handler) requireUserID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return userID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"code", string(dErrors.CodeOf(err)),
		"error", err.Error(),
	}
	if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		h.logger.WarnContext(ctx, msg, attrs...)
		return
	}
	h.logger.ErrorContext(ctx, msg, attrs...)
}

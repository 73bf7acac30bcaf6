package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicpulse/internal/enrollment/models"
	id "civicpulse/pkg/domain"
	dErrors "civicpulse/pkg/domain-errors"
	"civicpulse/pkg/platform/httputil"
	"civicpulse/pkg/requestcontext"
)

// Service defines the enrollment operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, userID id.UserID, template []byte) error
	StatusOf(ctx context.Context, userID id.UserID) (models.EnrollmentStatus, error)
	Revoke(ctx context.Context, userID id.UserID) error
	Verify(ctx context.Context, userID id.UserID, probe []byte) (bool, error)
}

// Handler serves the caller's own enrollment. The caller is always the
// authenticated user from the request context.
type Handler struct {
	logger       *slog.Logger
	enrollment   Service
	maxBodyBytes int64
}

// New creates an enrollment Handler. Request bodies are capped to fit a
// base64-encoded template of maxTemplateBytes.
func New(enrollment Service, logger *slog.Logger, maxTemplateBytes int) *Handler {
	return &Handler{
		logger:       logger,
		enrollment:   enrollment,
		maxBodyBytes: int64(maxTemplateBytes)*4/3 + 4096,
	}
}

// Register registers the enrollment routes. Authentication is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Get("/enrollment", h.HandleStatus)
	r.Post("/enrollment", h.HandleRegister)
	r.Delete("/enrollment", h.HandleRevoke)
	r.Post("/enrollment/verify", h.HandleVerify)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	status, err := h.enrollment.StatusOf(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load enrollment status", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(status))
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req RegisterEnrollmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	template, err := DecodePayload(req.payload())
	if err != nil {
		h.logFailure(ctx, "invalid enrollment template", err)
		httputil.WriteError(w, err)
		return
	}

	if err := h.enrollment.Register(ctx, userID, template); err != nil {
		h.logFailure(ctx, "failed to register enrollment", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.enrollment.Revoke(ctx, userID); err != nil {
		h.logFailure(ctx, "failed to revoke enrollment", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req VerifyEnrollmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	probe, err := DecodePayload(req.Probe)
	if err != nil {
		h.logFailure(ctx, "invalid verification probe", err)
		httputil.WriteError(w, err)
		return
	}

	matched, err := h.enrollment.Verify(ctx, userID, probe)
	if err != nil {
		h.logFailure(ctx, "failed to verify enrollment", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Matched: matched})
}

func (h *Handler) requireUserID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		// RequireAuth guarantees a user id; reaching here is a wiring error.
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return userID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		h.logger.WarnContext(ctx, "invalid enrollment request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Invalid(dErrors.ReasonInvalidPayload, "invalid request body"))
		return false
	}
	return true
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

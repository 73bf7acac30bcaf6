// Package handler exposes a user's audit trail to administrators.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "civicpulse/pkg/domain"
	dErrors "civicpulse/pkg/domain-errors"
	audit "civicpulse/pkg/platform/audit"
	"civicpulse/pkg/platform/audit/publisher"
	"civicpulse/pkg/platform/httputil"
	"civicpulse/pkg/requestcontext"
)

// Lister reads back a user's audit events, newest first.
type Lister interface {
	List(ctx context.Context, userID id.UserID) ([]audit.Event, error)
}

type Handler struct {
	logger *slog.Logger
	events Lister
}

func New(events Lister, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, events: events}
}

// RegisterAdmin registers the audit routes. The caller applies admin auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/audit/{user_id}", h.HandleListUserEvents)
}

type eventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
}

type listResponse struct {
	UserID string          `json:"user_id"`
	Events []eventResponse `json:"events"`
}

func (h *Handler) HandleListUserEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.events.List(ctx, userID)
	if err != nil {
		if errors.Is(err, publisher.ErrListUnsupported) {
			err = dErrors.Wrap(err, dErrors.CodeUnavailable, "audit sink does not support listing")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list audit events")
		}
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := listResponse{UserID: userID.String(), Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, eventResponse{
			Timestamp: e.Timestamp,
			Category:  string(e.Category),
			Action:    e.Action,
			Decision:  e.Decision,
			Reason:    e.Reason,
			RequestID: e.RequestID,
			ClientIP:  e.ClientIP,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

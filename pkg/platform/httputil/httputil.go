// Package httputil writes JSON responses and the domain error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "civicpulse/pkg/domain-errors"
)

// ErrorResponse is the wire shape of every failed request.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP status and envelope.
// Internal errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Description = publicMessage(err)
		resp.Reason = string(dErrors.ReasonOf(err))
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// publicMessage returns the outermost domain message without wrapped causes,
// which may carry driver details.
func publicMessage(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return string(dErrors.CodeOf(err))
}

// Package domainerrors defines the stable error kinds surfaced by services.
//
// Every failure that leaves a service carries a Code. Handlers translate the
// Code into an HTTP status; clients switch on the Code (and optionally the
// Reason) instead of parsing messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, client-visible error kind.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeStorageUnavailable Code = "storage_unavailable"
	CodeDeviceUnavailable  Code = "device_unavailable"
	CodeUnavailable        Code = "unavailable"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Reason refines CodeInvalidInput so callers can tell validation failures apart.
type Reason string

const (
	ReasonInvalidScore   Reason = "invalid_score"
	ReasonCommentTooLong Reason = "comment_too_long"
	ReasonInvalidPayload Reason = "invalid_payload"
	ReasonInvalidUserID  Reason = "invalid_user_id"
	ReasonInvalidState   Reason = "invalid_state"
)

// Error is the domain error carried across layers.
type Error struct {
	Code    Code
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a domain error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Invalid creates a CodeInvalidInput error with a reason.
func Invalid(reason Reason, msg string) *Error {
	return &Error{Code: CodeInvalidInput, Reason: reason, Message: msg}
}

// CodeOf returns the code of the first domain error in the chain, or
// CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ReasonOf returns the reason of the first domain error in the chain.
func ReasonOf(err error) Reason {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeStorageUnavailable, CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeDeviceUnavailable:
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

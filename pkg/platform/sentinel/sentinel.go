// Package sentinel defines the facts stores report about records. Services
// match them with errors.Is and translate them into domain error codes.
package sentinel

import "errors"

var (
	// ErrNotFound means the user has no enrollment or rating.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means the operation is not allowed in the current state,
	// such as capturing from a session that holds no device.
	ErrInvalidState = errors.New("invalid state")
)

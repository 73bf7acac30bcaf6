// Package domain holds identifier primitives shared by every service.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "civicpulse/pkg/domain-errors"
)

// maxUserIDLength bounds identifiers accepted from the identity collaborator.
const maxUserIDLength = 128

// UserID is the opaque citizen identifier issued by the identity provider.
// The service never creates users; it only keys its records by this value.
type UserID string

// ParseUserID validates an identifier at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	if s == "" || strings.TrimSpace(s) == "" {
		return "", dErrors.Invalid(dErrors.ReasonInvalidUserID, "user id is required")
	}
	if len(s) > maxUserIDLength {
		return "", dErrors.Invalid(dErrors.ReasonInvalidUserID, "user id is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.Invalid(dErrors.ReasonInvalidUserID, "user id must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || !unicode.IsPrint(r) {
			return "", dErrors.Invalid(dErrors.ReasonInvalidUserID, "user id contains invalid characters")
		}
	}
	return UserID(s), nil
}

func (id UserID) String() string { return string(id) }

// IsNil reports whether the identifier is unset.
func (id UserID) IsNil() bool { return id == "" }

package models

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	id "civicpulse/pkg/domain"
)

// Status is the enrollment state of a user.
type Status string

const (
	StatusAbsent Status = "absent"
	StatusActive Status = "active"
)

// Enrollment is the single active biometric template of a user. The template
// bytes are opaque and never interpreted.
type Enrollment struct {
	UserID      id.UserID
	Template    []byte
	Fingerprint string
	EnrolledAt  time.Time
}

// NewEnrollment builds an enrollment, copying template and computing its fingerprint.
func NewEnrollment(userID id.UserID, template []byte, enrolledAt time.Time) *Enrollment {
	buf := make([]byte, len(template))
	copy(buf, template)
	return &Enrollment{
		UserID:      userID,
		Template:    buf,
		Fingerprint: Fingerprint(buf),
		EnrolledAt:  enrolledAt,
	}
}

// Fingerprint is the hex-encoded BLAKE2b-256 digest of a template.
func Fingerprint(template []byte) string {
	sum := blake2b.Sum256(template)
	return hex.EncodeToString(sum[:])
}

// EnrollmentStatus is the read view of an enrollment. EnrolledAt and
// Fingerprint are set only when Status is active.
type EnrollmentStatus struct {
	Status      Status
	EnrolledAt  time.Time
	Fingerprint string
}

func (s EnrollmentStatus) Active() bool { return s.Status == StatusActive }

// Absent is the status of a user with no enrollment.
func Absent() EnrollmentStatus {
	return EnrollmentStatus{Status: StatusAbsent}
}

// StatusOf derives the status view of an enrollment.
func StatusOf(e *Enrollment) EnrollmentStatus {
	if e == nil {
		return Absent()
	}
	return EnrollmentStatus{
		Status:      StatusActive,
		EnrolledAt:  e.EnrolledAt,
		Fingerprint: e.Fingerprint,
	}
}

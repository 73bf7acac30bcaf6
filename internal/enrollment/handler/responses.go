package handler

import (
	"time"

	"civicpulse/internal/enrollment/models"
)

type StatusResponse struct {
	Active      bool       `json:"active"`
	EnrolledAt  *time.Time `json:"enrolled_at,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type VerifyResponse struct {
	Matched bool `json:"matched"`
}

func toStatusResponse(status models.EnrollmentStatus) StatusResponse {
	if !status.Active() {
		return StatusResponse{Active: false}
	}
	enrolledAt := status.EnrolledAt.UTC()
	return StatusResponse{
		Active:      true,
		EnrolledAt:  &enrolledAt,
		Fingerprint: status.Fingerprint,
	}
}

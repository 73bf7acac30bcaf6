package audit

import (
	"context"
	"time"

	id "civicpulse/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Biometric enrollment changes are compliance events.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Events never carry
// template bytes or free-text comments.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Action    string
	Decision  string
	Reason    string
	RequestID string
	ClientIP  string
}

type AuditEvent string

const (
	// Enrollment events
	EventEnrollmentRegistered AuditEvent = "enrollment_registered"
	EventEnrollmentReplaced   AuditEvent = "enrollment_replaced"
	EventEnrollmentRevoked    AuditEvent = "enrollment_revoked"
	EventEnrollmentVerified   AuditEvent = "enrollment_verified"

	// Rating events
	EventRatingSubmitted AuditEvent = "rating_submitted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventEnrollmentRegistered: CategoryCompliance,
	EventEnrollmentReplaced:   CategoryCompliance,
	EventEnrollmentRevoked:    CategoryCompliance,
	EventEnrollmentVerified:   CategorySecurity,

	EventRatingSubmitted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

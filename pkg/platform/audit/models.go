package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance. These
	// require tamper-evident storage and long retention.
	// Examples: verification decisions, policy publication.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	// Examples: failed sessions, cache invalidation.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// SessionID correlates the event with one verification session.
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	PolicyID      string  `json:"policy_id,omitempty"`
	PolicyVersion string  `json:"policy_version,omitempty"`
	Decision      string  `json:"decision,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	// Digest is the decision digest, tying the audit record to the exact
	// artifact returned to the caller.
	Digest string `json:"digest,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type AuditEvent string

const (
	EventDecisionMade      AuditEvent = "decision_made"
	EventSessionFailed     AuditEvent = "session_failed"
	EventPolicyPublished   AuditEvent = "policy_published"
	EventPolicyInvalidated AuditEvent = "policy_invalidated"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventDecisionMade:      CategoryCompliance,
	EventPolicyPublished:   CategoryCompliance,
	EventSessionFailed:     CategoryOperations,
	EventPolicyInvalidated: CategoryOperations,
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

// Emitter is implemented by publishers.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

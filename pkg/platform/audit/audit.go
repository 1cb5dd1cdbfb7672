package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategorySecurity covers events relevant to security monitoring and
	// forensics. Examples: sign-ins, refresh rejections, forced sign-outs.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key session actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    string        `json:"user_id,omitempty"`
	Email     string        `json:"email,omitempty"`
	Action    string        `json:"action"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// EventName identifies a session lifecycle action.
type EventName string

const (
	EventSignIn          EventName = "sign_in"
	EventSignOut         EventName = "sign_out"
	EventForcedSignOut   EventName = "forced_sign_out"
	EventRefreshRejected EventName = "refresh_rejected"
	EventVerifyFailed    EventName = "verification_failed"
	EventLockout         EventName = "auth_lockout"
)

// Sink receives audit events. Implementations must be safe for concurrent
// use; a failing sink must never block the auth decision that emitted the
// event.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

package alerts

import "time"

// EventType identifies a lifecycle transition recorded for an alert
type EventType string

const (
	EventCreated      EventType = "created"
	EventAcknowledged EventType = "acknowledged"
	EventEscalated    EventType = "escalated"
	EventResolved     EventType = "resolved"
	EventSuppressed   EventType = "suppressed"
	EventEnriched     EventType = "enriched"
	EventScored       EventType = "scored"
	EventGrouped      EventType = "grouped"
)

// ValidEventTypes lists every recognized lifecycle event type
var ValidEventTypes = []EventType{
	EventCreated, EventAcknowledged, EventEscalated, EventResolved,
	EventSuppressed, EventEnriched, EventScored, EventGrouped,
}

// AlertEvent is an immutable append-only record of a lifecycle transition.
// Events are never mutated or reordered after insertion and are purged only
// by retention sweeps.
type AlertEvent struct {
	ID            string        `json:"id"`
	AlertID       string        `json:"alert_id"`
	Type          EventType     `json:"type"`
	Timestamp     time.Time     `json:"timestamp"`
	Source        string        `json:"source"`
	Severity      Severity      `json:"severity"`
	Duration      time.Duration `json:"duration,omitempty"`
	BusinessScore float64       `json:"business_score,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
}

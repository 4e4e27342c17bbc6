package testhelpers

import (
	"fmt"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// ========================================
// Raw Alert Builder
// ========================================

// RawAlertBuilder builds RawAlert instances for testing
type RawAlertBuilder struct {
	alert alerts.RawAlert
}

// NewRawAlertBuilder creates a new raw alert builder with defaults
func NewRawAlertBuilder() *RawAlertBuilder {
	return &RawAlertBuilder{
		alert: alerts.RawAlert{
			ID:        "alert-1",
			Timestamp: time.Now(),
			Severity:  "high",
			Source:    "test-source",
			Message:   "Test alert message",
		},
	}
}

// WithID sets the alert id
func (b *RawAlertBuilder) WithID(id string) *RawAlertBuilder {
	b.alert.ID = id
	return b
}

// WithTimestamp sets the alert timestamp
func (b *RawAlertBuilder) WithTimestamp(ts time.Time) *RawAlertBuilder {
	b.alert.Timestamp = ts
	return b
}

// WithSeverity sets the severity
func (b *RawAlertBuilder) WithSeverity(severity string) *RawAlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithSource sets the source
func (b *RawAlertBuilder) WithSource(source string) *RawAlertBuilder {
	b.alert.Source = source
	return b
}

// WithMessage sets the message
func (b *RawAlertBuilder) WithMessage(message string) *RawAlertBuilder {
	b.alert.Message = message
	return b
}

// WithTags sets the tags
func (b *RawAlertBuilder) WithTags(tags ...string) *RawAlertBuilder {
	b.alert.Tags = tags
	return b
}

// WithMetadata sets one metadata key
func (b *RawAlertBuilder) WithMetadata(key string, value interface{}) *RawAlertBuilder {
	if b.alert.Metadata == nil {
		b.alert.Metadata = make(map[string]interface{})
	}
	b.alert.Metadata[key] = value
	return b
}

// Build returns the raw alert
func (b *RawAlertBuilder) Build() *alerts.RawAlert {
	alert := b.alert
	return &alert
}

// BuildParsed validates and converts the raw alert, failing the build on a
// contract violation. Use in tests that need a core Alert directly.
func (b *RawAlertBuilder) BuildParsed() (*alerts.Alert, error) {
	return alerts.ParseAlert(b.Build())
}

// ========================================
// Alert Event Builder
// ========================================

// EventBuilder builds AlertEvent instances for testing
type EventBuilder struct {
	event alerts.AlertEvent
}

// NewEventBuilder creates a new event builder with defaults
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		event: alerts.AlertEvent{
			ID:        "event-1",
			AlertID:   "alert-1",
			Type:      alerts.EventCreated,
			Timestamp: time.Now(),
			Source:    "test-source",
			Severity:  alerts.SeverityHigh,
		},
	}
}

// WithID sets the event id
func (b *EventBuilder) WithID(id string) *EventBuilder {
	b.event.ID = id
	return b
}

// WithAlertID sets the alert id
func (b *EventBuilder) WithAlertID(alertID string) *EventBuilder {
	b.event.AlertID = alertID
	return b
}

// WithType sets the event type
func (b *EventBuilder) WithType(t alerts.EventType) *EventBuilder {
	b.event.Type = t
	return b
}

// WithTimestamp sets the event timestamp
func (b *EventBuilder) WithTimestamp(ts time.Time) *EventBuilder {
	b.event.Timestamp = ts
	return b
}

// WithSource sets the source
func (b *EventBuilder) WithSource(source string) *EventBuilder {
	b.event.Source = source
	return b
}

// WithSeverity sets the severity
func (b *EventBuilder) WithSeverity(severity alerts.Severity) *EventBuilder {
	b.event.Severity = severity
	return b
}

// WithScore sets the business score
func (b *EventBuilder) WithScore(score float64) *EventBuilder {
	b.event.BusinessScore = score
	return b
}

// WithDuration sets the duration
func (b *EventBuilder) WithDuration(d time.Duration) *EventBuilder {
	b.event.Duration = d
	return b
}

// WithTags sets the tags
func (b *EventBuilder) WithTags(tags ...string) *EventBuilder {
	b.event.Tags = tags
	return b
}

// Build returns the event
func (b *EventBuilder) Build() *alerts.AlertEvent {
	event := b.event
	return &event
}

// ========================================
// Bulk Helpers
// ========================================

// EventSeries builds n created events from one source, spaced by interval,
// with distinct alert and event ids. Useful for frequency pattern tests.
func EventSeries(source string, start time.Time, n int, interval time.Duration) []*alerts.AlertEvent {
	events := make([]*alerts.AlertEvent, n)
	for i := 0; i < n; i++ {
		events[i] = NewEventBuilder().
			WithID(fmt.Sprintf("event-%s-%d", source, i)).
			WithAlertID(fmt.Sprintf("alert-%s-%d", source, i)).
			WithSource(source).
			WithTimestamp(start.Add(time.Duration(i) * interval)).
			Build()
	}
	return events
}

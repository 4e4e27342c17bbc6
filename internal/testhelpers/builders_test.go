package testhelpers

import (
	"testing"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

func TestRawAlertBuilder_Defaults(t *testing.T) {
	raw := NewRawAlertBuilder().Build()

	if raw.ID == "" {
		t.Error("default ID should not be empty")
	}
	if raw.Source == "" {
		t.Error("default Source should not be empty")
	}
	if raw.Message == "" {
		t.Error("default Message should not be empty")
	}
	if raw.Timestamp.IsZero() {
		t.Error("default Timestamp should be set")
	}
}

func TestRawAlertBuilder_Overrides(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := NewRawAlertBuilder().
		WithID("custom-id").
		WithTimestamp(ts).
		WithSeverity("critical").
		WithSource("db-primary").
		WithMessage("connection pool exhausted").
		WithTags("team:db", "env:prod").
		WithMetadata("region", "us-east-1").
		Build()

	if raw.ID != "custom-id" {
		t.Errorf("ID = %q, want %q", raw.ID, "custom-id")
	}
	if !raw.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", raw.Timestamp, ts)
	}
	if raw.Severity != "critical" {
		t.Errorf("Severity = %q, want %q", raw.Severity, "critical")
	}
	if len(raw.Tags) != 2 {
		t.Errorf("len(Tags) = %d, want 2", len(raw.Tags))
	}
	if raw.Metadata["region"] != "us-east-1" {
		t.Errorf("Metadata[region] = %v, want us-east-1", raw.Metadata["region"])
	}
}

func TestRawAlertBuilder_BuildParsed(t *testing.T) {
	alert, err := NewRawAlertBuilder().WithSeverity("warning").BuildParsed()
	if err != nil {
		t.Fatalf("BuildParsed failed: %v", err)
	}
	if alert.Severity != alerts.SeverityMedium {
		t.Errorf("Severity = %q, want %q (warning normalizes to medium)", alert.Severity, alerts.SeverityMedium)
	}
	if alert.Count != 1 {
		t.Errorf("Count = %d, want 1", alert.Count)
	}
}

func TestRawAlertBuilder_BuildParsed_Invalid(t *testing.T) {
	_, err := NewRawAlertBuilder().WithMessage("").BuildParsed()
	if err == nil {
		t.Fatal("expected validation error for empty message")
	}
}

func TestRawAlertBuilder_BuildIsACopy(t *testing.T) {
	b := NewRawAlertBuilder()
	first := b.Build()
	b.WithID("changed")
	second := b.Build()

	if first.ID == second.ID {
		t.Error("Build should return independent copies")
	}
}

func TestEventBuilder(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	ev := NewEventBuilder().
		WithID("ev-9").
		WithAlertID("alert-9").
		WithType(alerts.EventResolved).
		WithTimestamp(ts).
		WithSource("cache").
		WithSeverity(alerts.SeverityCritical).
		WithScore(88.5).
		WithDuration(10 * time.Minute).
		WithTags("team:core").
		Build()

	if ev.ID != "ev-9" || ev.AlertID != "alert-9" {
		t.Errorf("ids = %q/%q, want ev-9/alert-9", ev.ID, ev.AlertID)
	}
	if ev.Type != alerts.EventResolved {
		t.Errorf("Type = %q, want %q", ev.Type, alerts.EventResolved)
	}
	if ev.BusinessScore != 88.5 {
		t.Errorf("BusinessScore = %v, want 88.5", ev.BusinessScore)
	}
	if ev.Duration != 10*time.Minute {
		t.Errorf("Duration = %v, want 10m", ev.Duration)
	}
}

func TestEventSeries(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	events := EventSeries("api-gateway", start, 5, time.Minute)

	if len(events) != 5 {
		t.Fatalf("len(events) = %d, want 5", len(events))
	}
	seen := make(map[string]bool)
	for i, ev := range events {
		if ev.Source != "api-gateway" {
			t.Errorf("events[%d].Source = %q, want api-gateway", i, ev.Source)
		}
		if seen[ev.AlertID] {
			t.Errorf("duplicate alert id %q", ev.AlertID)
		}
		seen[ev.AlertID] = true
		want := start.Add(time.Duration(i) * time.Minute)
		if !ev.Timestamp.Equal(want) {
			t.Errorf("events[%d].Timestamp = %v, want %v", i, ev.Timestamp, want)
		}
	}
}

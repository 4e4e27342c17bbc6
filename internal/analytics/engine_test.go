package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/bus"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinOccurrences = 5
	return cfg
}

// recordCreated feeds n created events for one source at minute intervals
func recordCreated(e *Engine, source string, start time.Time, n int) {
	for i := 0; i < n; i++ {
		e.Record(&alerts.AlertEvent{
			AlertID:   fmt.Sprintf("%s-%d", source, i),
			Type:      alerts.EventCreated,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Source:    source,
			Severity:  alerts.SeverityHigh,
		})
	}
}

func TestRecord_FillsDefaults(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	ev := &alerts.AlertEvent{AlertID: "a1", Type: alerts.EventCreated, Source: "db", Severity: alerts.SeverityHigh}
	e.Record(ev)

	if ev.ID == "" {
		t.Error("missing event id should be filled in")
	}
	if ev.Timestamp.IsZero() {
		t.Error("missing timestamp should be filled in")
	}
	if e.EventCount() != 1 {
		t.Errorf("EventCount = %d, want 1", e.EventCount())
	}
}

func TestDetectHighFrequency(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	start := time.Now().Add(-20 * time.Minute)
	recordCreated(e, "flappy", start, 12)

	patterns := e.GetPatterns("")
	var found *alerts.AlertPattern
	for _, p := range patterns {
		if p.ID == "high_freq_flappy" {
			found = p
		}
	}
	if found == nil {
		t.Fatalf("high-frequency pattern not detected, have %d patterns", len(patterns))
	}

	if found.Confidence != 0.24 {
		t.Errorf("Confidence = %v, want 0.24 (12/50)", found.Confidence)
	}
	if found.Occurrences != 12 {
		t.Errorf("Occurrences = %d, want 12", found.Occurrences)
	}
	if found.Status != alerts.PatternStatusActive {
		t.Errorf("Status = %s, want active", found.Status)
	}
	if len(found.Recommendations) == 0 {
		t.Error("pattern should carry recommendations")
	}
}

func TestDetectHighFrequency_BelowThreshold(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	recordCreated(e, "quiet", time.Now().Add(-10*time.Minute), 4)

	for _, p := range e.GetPatterns("") {
		if p.ID == "high_freq_quiet" {
			t.Error("pattern fired below the occurrence threshold")
		}
	}
}

func TestDetectCascadingFailure(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	start := time.Now().Add(-10 * time.Minute)
	for i, source := range []string{"db", "cache", "api", "db", "queue"} {
		e.Record(&alerts.AlertEvent{
			AlertID:   fmt.Sprintf("c-%d", i),
			Type:      alerts.EventCreated,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Source:    source,
			Severity:  alerts.SeverityHigh,
		})
	}

	var found *alerts.AlertPattern
	for _, p := range e.GetPatterns("") {
		if p.ID == "cascading_failure" {
			found = p
		}
	}
	if found == nil {
		t.Fatal("cascading failure pattern not detected")
	}
	if found.Occurrences != 5 {
		t.Errorf("Occurrences = %d, want 5", found.Occurrences)
	}
	if found.Confidence != 0.4 {
		t.Errorf("Confidence = %v, want 0.4 (4 sources / 10)", found.Confidence)
	}
	if len(found.Criteria.Sources) != 4 {
		t.Errorf("Criteria.Sources = %v, want 4 distinct sources", found.Criteria.Sources)
	}
}

func TestDetectSeverityEscalation(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	base := time.Now().Add(-30 * time.Minute)
	for i, sev := range []alerts.Severity{alerts.SeverityLow, alerts.SeverityMedium, alerts.SeverityHigh} {
		e.Record(&alerts.AlertEvent{
			AlertID:   "climber",
			Type:      alerts.EventCreated,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Source:    "db",
			Severity:  sev,
		})
	}

	var found *alerts.AlertPattern
	for _, p := range e.GetPatterns("") {
		if p.ID == "severity_escalation_climber" {
			found = p
		}
	}
	if found == nil {
		t.Fatal("severity escalation pattern not detected")
	}
	if found.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", found.Confidence)
	}
	if found.Impact.EscalationRate != 100 {
		t.Errorf("EscalationRate = %v, want 100", found.Impact.EscalationRate)
	}
	if len(found.Criteria.Severities) != 3 {
		t.Errorf("Criteria.Severities = %v, want the 3-step sequence", found.Criteria.Severities)
	}
}

func TestDetectSeverityEscalation_NotStrictlyIncreasing(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	base := time.Now().Add(-30 * time.Minute)
	for i, sev := range []alerts.Severity{alerts.SeverityLow, alerts.SeverityHigh, alerts.SeverityHigh} {
		e.Record(&alerts.AlertEvent{
			AlertID:   "plateau",
			Type:      alerts.EventCreated,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Source:    "db",
			Severity:  sev,
		})
	}

	for _, p := range e.GetPatterns("") {
		if p.ID == "severity_escalation_plateau" {
			t.Error("plateaued severities must not count as escalation")
		}
	}
}

func TestUpsertPattern_PreservesOperatorStatus(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	start := time.Now().Add(-20 * time.Minute)
	recordCreated(e, "flappy", start, 6)

	if !e.SetPatternStatus("high_freq_flappy", alerts.PatternStatusInvestigating) {
		t.Fatal("SetPatternStatus should find the pattern")
	}

	// A re-detection overwrites the pattern but keeps the operator status.
	recordCreated(e, "flappy", start.Add(10*time.Minute), 3)

	for _, p := range e.GetPatterns("") {
		if p.ID == "high_freq_flappy" && p.Status != alerts.PatternStatusInvestigating {
			t.Errorf("Status after re-detection = %s, want investigating", p.Status)
		}
	}

	if e.SetPatternStatus("no-such-pattern", alerts.PatternStatusIgnored) {
		t.Error("SetPatternStatus on an unknown id should report false")
	}
}

func TestGetPatterns_FilterAndOrder(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	defer e.Stop()

	start := time.Now().Add(-20 * time.Minute)
	recordCreated(e, "loud", start, 20)  // confidence 0.4
	recordCreated(e, "louder", start, 6) // confidence 0.12

	all := e.GetPatterns("")
	if len(all) < 2 {
		t.Fatalf("patterns = %d, want at least 2", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Confidence > all[i-1].Confidence {
			t.Error("patterns should be sorted by descending confidence")
		}
	}

	e.SetPatternStatus("high_freq_loud", alerts.PatternStatusIgnored)
	ignored := e.GetPatterns(alerts.PatternStatusIgnored)
	if len(ignored) != 1 || ignored[0].ID != "high_freq_loud" {
		t.Errorf("status filter returned %v", ignored)
	}
}

func TestRunRetentionSweep(t *testing.T) {
	cfg := testConfig()
	cfg.RetentionDays = 7
	e := NewEngine(cfg, nil)
	defer e.Stop()

	now := time.Now()
	e.Record(&alerts.AlertEvent{AlertID: "old", Type: alerts.EventCreated, Timestamp: now.Add(-8 * 24 * time.Hour), Source: "db", Severity: alerts.SeverityLow})
	e.Record(&alerts.AlertEvent{AlertID: "new", Type: alerts.EventCreated, Timestamp: now, Source: "db", Severity: alerts.SeverityLow})

	if purged := e.RunRetentionSweep(now); purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if e.EventCount() != 1 {
		t.Errorf("EventCount after sweep = %d, want 1", e.EventCount())
	}
	if e.Events()[0].AlertID != "new" {
		t.Error("the recent event should survive the sweep")
	}
}

func TestPatternDetectionPublishesEvents(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(32)
	defer unsub()

	e := NewEngine(testConfig(), b)
	defer e.Stop()

	recordCreated(e, "flappy", time.Now().Add(-20*time.Minute), 6)

	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind != bus.KindPatternDetected {
				continue
			}
			p, ok := evt.Payload.(alerts.AlertPattern)
			if !ok {
				t.Fatalf("payload is %T, want alerts.AlertPattern", evt.Payload)
			}
			if p.ID != "high_freq_flappy" {
				continue
			}
			return
		case <-deadline:
			t.Fatal("no pattern-detected event published")
		}
	}
}

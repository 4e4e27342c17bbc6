package store

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/suppression"
)

// setupTestDB creates an in-memory database with all tables migrated
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func sampleAlert(id string) *alerts.Alert {
	return &alerts.Alert{
		ID:          id,
		Timestamp:   time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Severity:    alerts.SeverityHigh,
		Source:      "db",
		Message:     "replication lag",
		Fingerprint: "fp-1",
		GroupID:     "g-1",
		Tags:        []string{"team:db"},
		Metadata:    map[string]interface{}{"region": "eu"},
		Count:       1,
	}
}

func TestSaveAlert_CreateAndUpsert(t *testing.T) {
	svc := NewService(setupTestDB(t))

	if err := svc.SaveAlert(sampleAlert("a-1"), 42.5); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	record, err := svc.GetAlert("a-1")
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if record.BusinessScore != 42.5 {
		t.Errorf("BusinessScore = %v, want 42.5", record.BusinessScore)
	}
	if record.Severity != "high" || record.Source != "db" {
		t.Errorf("record = %+v", record)
	}
	if len(record.Tags) != 1 || record.Tags[0] != "team:db" {
		t.Errorf("Tags = %v, want [team:db]", record.Tags)
	}
	if record.Metadata["region"] != "eu" {
		t.Errorf("Metadata = %v", record.Metadata)
	}

	// Re-saving the same alert id updates in place.
	updated := sampleAlert("a-1")
	updated.Suppressed = true
	if err := svc.SaveAlert(updated, 60); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	record, _ = svc.GetAlert("a-1")
	if !record.Suppressed || record.BusinessScore != 60 {
		t.Errorf("upsert result = suppressed %v score %v", record.Suppressed, record.BusinessScore)
	}

	var count int64
	svc.db.Model(&ProcessedAlert{}).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, upsert must not duplicate", count)
	}
}

func TestGetAlert_NotFound(t *testing.T) {
	svc := NewService(setupTestDB(t))
	if _, err := svc.GetAlert("ghost"); err == nil {
		t.Error("missing alert should return an error")
	}
}

func TestListAlerts_PaginationAndOrder(t *testing.T) {
	svc := NewService(setupTestDB(t))
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		a := sampleAlert(fmt.Sprintf("a-%d", i))
		a.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := svc.SaveAlert(a, 10); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	records, total, err := svc.ListAlerts(2, 0)
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(records) != 2 {
		t.Fatalf("page size = %d, want 2", len(records))
	}
	if records[0].AlertID != "a-4" || records[1].AlertID != "a-3" {
		t.Errorf("order = %s, %s, want newest first", records[0].AlertID, records[1].AlertID)
	}

	page2, _, _ := svc.ListAlerts(2, 2)
	if page2[0].AlertID != "a-2" {
		t.Errorf("offset page starts at %s, want a-2", page2[0].AlertID)
	}
}

func TestSaveGroup_UpsertPreservesExpiry(t *testing.T) {
	svc := NewService(setupTestDB(t))
	rep := sampleAlert("a-1")
	group := &alerts.AlertGroup{
		ID:             "g-1",
		Fingerprint:    "fp-1",
		Count:          1,
		Severity:       alerts.SeverityHigh,
		Representative: rep,
		FirstSeen:      rep.Timestamp,
		LastSeen:       rep.Timestamp,
	}

	if err := svc.SaveGroup(group); err != nil {
		t.Fatalf("SaveGroup failed: %v", err)
	}

	expiredAt := rep.Timestamp.Add(time.Hour)
	if err := svc.MarkGroupExpired("g-1", expiredAt); err != nil {
		t.Fatalf("MarkGroupExpired failed: %v", err)
	}

	// Later snapshot updates counters but keeps the expiry stamp.
	group.Count = 3
	if err := svc.SaveGroup(group); err != nil {
		t.Fatalf("second SaveGroup failed: %v", err)
	}

	records, total, err := svc.ListGroups(10, 0)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("groups = %d/%d, want 1", len(records), total)
	}
	if records[0].AlertCount != 3 {
		t.Errorf("AlertCount = %d, want 3", records[0].AlertCount)
	}
	if records[0].ExpiredAt == nil {
		t.Error("upsert dropped the expiry stamp")
	}
	if records[0].Source != "db" {
		t.Errorf("Source = %q, want representative source", records[0].Source)
	}
}

func TestRecordAndListEvents(t *testing.T) {
	svc := NewService(setupTestDB(t))
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := &alerts.AlertEvent{
			ID:            fmt.Sprintf("ev-%d", i),
			AlertID:       "a-1",
			Type:          alerts.EventCreated,
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			Source:        "db",
			Severity:      alerts.SeverityHigh,
			Duration:      90 * time.Second,
			BusinessScore: 55,
		}
		if err := svc.RecordEvent(ev); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	records, total, err := svc.ListEvents(10, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if records[0].EventID != "ev-2" {
		t.Errorf("first record = %s, want newest", records[0].EventID)
	}
	if records[0].DurationMs != 90000 {
		t.Errorf("DurationMs = %d, want 90000", records[0].DurationMs)
	}
}

func TestPurgeEventsBefore(t *testing.T) {
	svc := NewService(setupTestDB(t))
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		svc.RecordEvent(&alerts.AlertEvent{
			ID:        fmt.Sprintf("ev-%d", i),
			AlertID:   "a-1",
			Type:      alerts.EventCreated,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Source:    "db",
			Severity:  alerts.SeverityLow,
		})
	}

	purged, err := svc.PurgeEventsBefore(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeEventsBefore failed: %v", err)
	}
	if purged != 2 {
		t.Errorf("purged = %d, want 2", purged)
	}

	_, total, _ := svc.ListEvents(10, 0)
	if total != 2 {
		t.Errorf("remaining = %d, want 2", total)
	}
}

func TestSaveAndListRules_RoundTrip(t *testing.T) {
	svc := NewService(setupTestDB(t))
	windowStart := time.Date(2026, 2, 1, 2, 0, 0, 0, time.UTC)

	rule := &suppression.Rule{
		ID:       "r-1",
		Name:     "db maintenance",
		Priority: 7,
		Condition: suppression.Condition{
			Type:        suppression.ConditionMaintenanceWindow,
			WindowStart: windowStart,
			WindowEnd:   windowStart.Add(2 * time.Hour),
		},
		Duration: 30 * time.Minute,
		Notify:   true,
		Enabled:  true,
	}

	if err := svc.SaveRule(rule); err != nil {
		t.Fatalf("SaveRule failed: %v", err)
	}

	rules, err := svc.ListRules()
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rules))
	}

	got := rules[0]
	if got.ID != "r-1" || got.Priority != 7 || !got.Notify || !got.Enabled {
		t.Errorf("rule = %+v", got)
	}
	if got.Condition.Type != suppression.ConditionMaintenanceWindow {
		t.Errorf("Condition.Type = %q", got.Condition.Type)
	}
	if !got.Condition.WindowStart.Equal(windowStart) {
		t.Errorf("WindowStart = %v, want %v", got.Condition.WindowStart, windowStart)
	}
	if got.Duration != 30*time.Minute {
		t.Errorf("Duration = %v, want 30m", got.Duration)
	}

	// Upsert updates in place.
	rule.Priority = 9
	if err := svc.SaveRule(rule); err != nil {
		t.Fatalf("rule upsert failed: %v", err)
	}
	rules, _ = svc.ListRules()
	if len(rules) != 1 || rules[0].Priority != 9 {
		t.Errorf("after upsert rules = %+v", rules)
	}
}

func TestDeleteRule(t *testing.T) {
	svc := NewService(setupTestDB(t))

	rule := &suppression.Rule{
		ID:        "r-1",
		Name:      "noise",
		Condition: suppression.Condition{Type: suppression.ConditionSource, Source: "db"},
		Enabled:   true,
	}
	if err := svc.SaveRule(rule); err != nil {
		t.Fatalf("SaveRule failed: %v", err)
	}

	if err := svc.DeleteRule("r-1"); err != nil {
		t.Errorf("DeleteRule failed: %v", err)
	}
	if err := svc.DeleteRule("r-1"); err == nil {
		t.Error("deleting a missing rule should return an error")
	}
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/analytics"
	"github.com/alertpipe/alertpipe/internal/api"
	"github.com/alertpipe/alertpipe/internal/pipeline"
	"github.com/alertpipe/alertpipe/internal/scoring"
	"github.com/alertpipe/alertpipe/internal/store"
	"github.com/alertpipe/alertpipe/internal/suppression"
	"github.com/alertpipe/alertpipe/internal/testhelpers"
)

// newAPITestServer wires the webhook and API handlers over one pipeline.
// With a store the pipeline persists through it; without one the list
// endpoints are degraded.
func newAPITestServer(t *testing.T, withStore bool) (*http.ServeMux, *pipeline.Pipeline, *store.Service) {
	t.Helper()

	var svc *store.Service
	var sink pipeline.Sink
	if withStore {
		svc = store.NewService(testhelpers.SetupTestDB(t))
		sink = svc
	}

	p, suppressor := newTestPipeline(t, sink)

	mux := http.NewServeMux()
	NewWebhookHandler(p).SetupRoutes(mux)
	NewAPIHandler(p, suppressor, scoring.NewMemoryRegistry(), svc).SetupRoutes(mux)
	return mux, p, svc
}

func ingestAlert(t *testing.T, mux *http.ServeMux, id, source string) {
	t.Helper()
	body := rawAlertBody(id)
	body["source"] = source
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/webhook/alert", nil).
		WithJSONBody(body).
		Execute(mux).
		AssertStatus(http.StatusAccepted)
}

func TestHandleQuery(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)
	for i := 0; i < 3; i++ {
		ingestAlert(t, mux, fmt.Sprintf("a-%d", i), fmt.Sprintf("svc-%d", i))
	}

	query := map[string]interface{}{
		"start":   time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		"end":     time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"metrics": []string{"count"},
	}

	var report analytics.Report
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/analytics/query", nil).
		WithJSONBody(query).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&report)

	if len(report.Rows) != 1 {
		t.Fatalf("rows = %d, want 1 without group-by", len(report.Rows))
	}
	if report.Rows[0].Metrics["count"] != 3 {
		t.Errorf("count = %v, want 3", report.Rows[0].Metrics["count"])
	}
}

func TestHandleQuery_UnknownMetric(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	query := map[string]interface{}{
		"start":   time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		"end":     time.Now().UTC().Format(time.RFC3339),
		"metrics": []string{"bogus"},
	}

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/analytics/query", nil).
		WithJSONBody(query).
		Execute(mux).
		AssertStatus(http.StatusBadRequest).
		AssertBodyContains("bogus")
}

func TestHandleQuery_InvalidJSON(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/analytics/query", strings.NewReader("{")).
		Execute(mux).
		AssertStatus(http.StatusBadRequest)
}

func TestHandleExport_JSON(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)
	ingestAlert(t, mux, "a-1", "db")

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/analytics/export", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		AssertHeader("Content-Type", "application/json").
		AssertBodyContains(`"events"`)
}

func TestHandleExport_CSV(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)
	ingestAlert(t, mux, "a-1", "db")

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/analytics/export?format=csv", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		AssertHeader("Content-Type", "text/csv").
		AssertHeader("Content-Disposition", "attachment; filename=analytics-export.csv").
		AssertBodyContains("event_id,alert_id")
}

func TestHandleExport_UnknownFormat(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/analytics/export?format=xml", nil).
		Execute(mux).
		AssertStatus(http.StatusBadRequest)
}

func TestHandleStats(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)
	ingestAlert(t, mux, "a-1", "db")
	ingestAlert(t, mux, "a-2", "api")

	var stats struct {
		Dedup struct {
			TotalAlerts  int `json:"total_alerts"`
			UniqueAlerts int `json:"unique_alerts"`
		} `json:"dedup"`
		EventCount int `json:"event_count"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/stats", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&stats)

	if stats.Dedup.TotalAlerts != 2 || stats.Dedup.UniqueAlerts != 2 {
		t.Errorf("dedup stats = %+v", stats.Dedup)
	}
	if stats.EventCount != 2 {
		t.Errorf("event_count = %d, want 2", stats.EventCount)
	}
}

// feedHighFrequency records enough created events to trip the frequency
// detector with the default configuration.
func feedHighFrequency(t *testing.T, p *pipeline.Pipeline, source string) {
	t.Helper()
	for i := 0; i < 12; i++ {
		p.Analytics().Record(&alerts.AlertEvent{
			AlertID:   fmt.Sprintf("a-%d", i),
			Type:      alerts.EventCreated,
			Timestamp: time.Now().Add(-time.Duration(i) * time.Minute),
			Source:    source,
			Severity:  alerts.SeverityHigh,
		})
	}
}

func TestHandleListPatterns(t *testing.T) {
	mux, p, _ := newAPITestServer(t, false)

	var empty struct {
		Count int `json:"count"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/patterns", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&empty)
	if empty.Count != 0 {
		t.Errorf("count = %d, want 0 before any detection", empty.Count)
	}

	feedHighFrequency(t, p, "db")

	var resp struct {
		Patterns []*alerts.AlertPattern `json:"patterns"`
		Count    int                    `json:"count"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/patterns", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if resp.Count == 0 {
		t.Fatal("high frequency pattern should be detected")
	}
	found := false
	for _, pat := range resp.Patterns {
		if pat.ID == "high_freq_db" {
			found = true
		}
	}
	if !found {
		t.Errorf("patterns = %+v, want high_freq_db", resp.Patterns)
	}
}

func TestHandleUpdatePatternStatus(t *testing.T) {
	mux, p, _ := newAPITestServer(t, false)
	feedHighFrequency(t, p, "db")

	var resp map[string]string
	testhelpers.NewHTTPTestContext(t, http.MethodPut, "/api/patterns/high_freq_db/status", nil).
		WithJSONBody(map[string]string{"status": "investigating"}).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)
	if resp["status"] != "investigating" {
		t.Errorf("response = %v", resp)
	}

	patterns := p.Analytics().GetPatterns(alerts.PatternStatusInvestigating)
	if len(patterns) != 1 {
		t.Errorf("investigating patterns = %d, want 1", len(patterns))
	}
}

func TestHandleUpdatePatternStatus_NotFound(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	testhelpers.NewHTTPTestContext(t, http.MethodPut, "/api/patterns/ghost/status", nil).
		WithJSONBody(map[string]string{"status": "resolved"}).
		Execute(mux).
		AssertStatus(http.StatusNotFound)
}

func TestHandleUpdatePatternStatus_InvalidStatus(t *testing.T) {
	mux, p, _ := newAPITestServer(t, false)
	feedHighFrequency(t, p, "db")

	testhelpers.NewHTTPTestContext(t, http.MethodPut, "/api/patterns/high_freq_db/status", nil).
		WithJSONBody(map[string]string{"status": "nonsense"}).
		Execute(mux).
		AssertStatus(http.StatusBadRequest)
}

func TestSuppressionRules_CRUD(t *testing.T) {
	mux, _, svc := newAPITestServer(t, true)

	var listing struct {
		Count int `json:"count"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/suppression-rules", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&listing)
	if listing.Count != 0 {
		t.Errorf("count = %d, want 0", listing.Count)
	}

	var created suppression.Rule
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/suppression-rules", nil).
		WithJSONBody(map[string]interface{}{
			"name":    "Silence staging",
			"enabled": true,
			"condition": map[string]interface{}{
				"type":   "source",
				"source": "staging-*",
			},
		}).
		Execute(mux).
		AssertStatus(http.StatusCreated).
		DecodeJSON(&created)

	if created.ID == "" {
		t.Fatal("rule id should be generated")
	}
	if created.Condition.Source != "staging-*" {
		t.Errorf("rule = %+v", created)
	}

	// The rule is persisted alongside the in-memory engine.
	persisted, err := svc.ListRules()
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(persisted) != 1 || persisted[0].ID != created.ID {
		t.Errorf("persisted rules = %+v", persisted)
	}

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/suppression-rules", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		AssertBodyContains(created.ID)

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, "/api/suppression-rules/"+created.ID, nil).
		Execute(mux).
		AssertStatus(http.StatusNoContent)

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, "/api/suppression-rules/"+created.ID, nil).
		Execute(mux).
		AssertStatus(http.StatusNotFound)
}

func TestCreateRule_MissingName(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/suppression-rules", nil).
		WithJSONBody(map[string]interface{}{
			"condition": map[string]interface{}{"type": "source", "source": "db"},
		}).
		Execute(mux).
		AssertStatus(http.StatusBadRequest)
}

func TestHandleRegisterContext(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	var ctx scoring.BusinessContext
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/contexts", nil).
		WithJSONBody(map[string]interface{}{
			"service_id":     "checkout",
			"hourly_revenue": 5000,
			"total_users":    10000,
		}).
		Execute(mux).
		AssertStatus(http.StatusCreated).
		DecodeJSON(&ctx)

	if ctx.ServiceID != "checkout" {
		t.Errorf("ServiceID = %q", ctx.ServiceID)
	}
	if ctx.Tier != 3 {
		t.Errorf("Tier = %d, want the default 3", ctx.Tier)
	}
}

func TestHandleRegisterContext_MissingServiceID(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/contexts", nil).
		WithJSONBody(map[string]interface{}{"tier": 1}).
		Execute(mux).
		AssertStatus(http.StatusBadRequest)
}

func TestHandleListAlerts(t *testing.T) {
	mux, _, _ := newAPITestServer(t, true)
	for i := 0; i < 3; i++ {
		ingestAlert(t, mux, fmt.Sprintf("a-%d", i), fmt.Sprintf("svc-%d", i))
	}

	var resp struct {
		Data       []api.AlertListItem `json:"data"`
		Pagination api.PaginationMeta  `json:"pagination"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/alerts?per_page=2", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if resp.Pagination.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Pagination.Total)
	}
	if len(resp.Data) != 2 {
		t.Errorf("page size = %d, want 2", len(resp.Data))
	}
	if resp.Pagination.TotalPages != 2 {
		t.Errorf("total pages = %d, want 2", resp.Pagination.TotalPages)
	}
}

func TestHandleListAlerts_NoStore(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/alerts", nil).
		Execute(mux).
		AssertStatus(http.StatusServiceUnavailable)
}

func TestHandleListGroups(t *testing.T) {
	mux, _, svc := newAPITestServer(t, true)

	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if err := svc.SaveGroup(&alerts.AlertGroup{
		ID:          "g-1",
		Fingerprint: "fp-1",
		Count:       2,
		Severity:    alerts.SeverityHigh,
		FirstSeen:   ts,
		LastSeen:    ts,
	}); err != nil {
		t.Fatalf("SaveGroup failed: %v", err)
	}

	var resp struct {
		Data       []api.GroupListItem `json:"data"`
		Pagination api.PaginationMeta  `json:"pagination"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/groups", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if resp.Pagination.Total != 1 || len(resp.Data) != 1 {
		t.Fatalf("groups = %d/%d, want 1", len(resp.Data), resp.Pagination.Total)
	}
	if resp.Data[0].GroupID != "g-1" || resp.Data[0].AlertCount != 2 {
		t.Errorf("group = %+v", resp.Data[0])
	}
}

func TestHandleListGroups_NoStore(t *testing.T) {
	mux, _, _ := newAPITestServer(t, false)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/groups", nil).
		Execute(mux).
		AssertStatus(http.StatusServiceUnavailable)
}

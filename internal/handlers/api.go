package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/analytics"
	"github.com/alertpipe/alertpipe/internal/api"
	"github.com/alertpipe/alertpipe/internal/pipeline"
	"github.com/alertpipe/alertpipe/internal/scoring"
	"github.com/alertpipe/alertpipe/internal/store"
	"github.com/alertpipe/alertpipe/internal/suppression"
)

// APIHandler handles the query and management API
type APIHandler struct {
	pipeline   *pipeline.Pipeline
	suppressor *suppression.Engine
	registry   scoring.ContextRegistry
	store      *store.Service
}

// NewAPIHandler creates an API handler. The store may be nil when running
// without persistence; the list endpoints then return 503.
func NewAPIHandler(p *pipeline.Pipeline, sup *suppression.Engine, registry scoring.ContextRegistry, st *store.Service) *APIHandler {
	return &APIHandler{
		pipeline:   p,
		suppressor: sup,
		registry:   registry,
		store:      st,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Analytics
	mux.HandleFunc("POST /api/analytics/query", h.handleQuery)
	mux.HandleFunc("GET /api/analytics/export", h.handleExport)
	mux.HandleFunc("GET /api/stats", h.handleStats)

	// Patterns
	mux.HandleFunc("GET /api/patterns", h.handleListPatterns)
	mux.HandleFunc("PUT /api/patterns/{id}/status", h.handleUpdatePatternStatus)

	// Suppression rules
	mux.HandleFunc("GET /api/suppression-rules", h.handleListRules)
	mux.HandleFunc("POST /api/suppression-rules", h.handleCreateRule)
	mux.HandleFunc("DELETE /api/suppression-rules/{id}", h.handleDeleteRule)

	// Business contexts
	mux.HandleFunc("POST /api/contexts", h.handleRegisterContext)

	// Stored alerts and groups
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/groups", h.handleListGroups)
}

// handleQuery handles POST /api/analytics/query
func (h *APIHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query analytics.Query
	if err := api.DecodeJSON(r, &query); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.pipeline.Analytics().Run(&query)
	if err != nil {
		var qerr *analytics.QueryError
		if errors.As(err, &qerr) {
			api.RespondError(w, http.StatusBadRequest, qerr.Error())
			return
		}
		log.Printf("APIHandler: Query failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Query failed")
		return
	}

	api.RespondJSON(w, http.StatusOK, report)
}

// handleExport handles GET /api/analytics/export?format=json|csv
func (h *APIHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	switch format {
	case "json":
		data, err := h.pipeline.Analytics().ExportJSON()
		if err != nil {
			log.Printf("APIHandler: JSON export failed: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Export failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			log.Printf("APIHandler: Failed to write export: %v", err)
		}
	case "csv":
		data, err := h.pipeline.Analytics().ExportCSV()
		if err != nil {
			log.Printf("APIHandler: CSV export failed: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Export failed")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=analytics-export.csv")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			log.Printf("APIHandler: Failed to write export: %v", err)
		}
	default:
		api.RespondError(w, http.StatusBadRequest, "Unknown export format: "+format)
	}
}

// handleStats handles GET /api/stats
func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"dedup":       h.pipeline.DedupStats(),
		"event_count": h.pipeline.Analytics().EventCount(),
	})
}

// handleListPatterns handles GET /api/patterns?status=
func (h *APIHandler) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	status := alerts.PatternStatus(r.URL.Query().Get("status"))
	patterns := h.pipeline.Analytics().GetPatterns(status)
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// handleUpdatePatternStatus handles PUT /api/patterns/{id}/status
func (h *APIHandler) handleUpdatePatternStatus(w http.ResponseWriter, r *http.Request) {
	patternID := r.PathValue("id")

	var req api.UpdatePatternStatusRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := api.Validate(req); fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}

	if !h.pipeline.Analytics().SetPatternStatus(patternID, alerts.PatternStatus(req.Status)) {
		api.RespondError(w, http.StatusNotFound, "Pattern not found: "+patternID)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{
		"id":     patternID,
		"status": req.Status,
	})
}

// handleListRules handles GET /api/suppression-rules
func (h *APIHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.suppressor.Rules()
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// handleCreateRule handles POST /api/suppression-rules
func (h *APIHandler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule suppression.Rule
	if err := api.DecodeJSON(r, &rule); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if rule.Name == "" {
		api.RespondError(w, http.StatusBadRequest, "Rule name is required")
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	h.suppressor.AddRule(&rule)

	if h.store != nil {
		if err := h.store.SaveRule(&rule); err != nil {
			log.Printf("APIHandler: Failed to persist rule %s: %v", rule.ID, err)
		}
	}

	api.RespondJSON(w, http.StatusCreated, rule)
}

// handleDeleteRule handles DELETE /api/suppression-rules/{id}
func (h *APIHandler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("id")

	if !h.suppressor.RemoveRule(ruleID) {
		api.RespondError(w, http.StatusNotFound, "Rule not found: "+ruleID)
		return
	}

	if h.store != nil {
		if err := h.store.DeleteRule(ruleID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("APIHandler: Failed to delete persisted rule %s: %v", ruleID, err)
		}
	}

	api.RespondNoContent(w)
}

// handleRegisterContext handles POST /api/contexts
func (h *APIHandler) handleRegisterContext(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterContextRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := api.Validate(req); fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}

	ctx := &scoring.BusinessContext{
		ServiceID:      req.ServiceID,
		Tier:           req.Tier,
		HourlyRevenue:  req.HourlyRevenue,
		DailyRevenue:   req.DailyRevenue,
		MonthlyRevenue: req.MonthlyRevenue,
		TotalUsers:     req.TotalUsers,
		AffectedUsers:  req.AffectedUsers,
		VIPUsers:       req.VIPUsers,
	}
	if ctx.Tier == 0 {
		ctx.Tier = 3
	}
	h.registry.Register(ctx)

	api.RespondJSON(w, http.StatusCreated, ctx)
}

// handleListAlerts handles GET /api/alerts
func (h *APIHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		api.RespondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	p := api.ParsePagination(r)
	records, total, err := h.store.ListAlerts(p.PerPage, p.Offset())
	if err != nil {
		log.Printf("APIHandler: Failed to list alerts: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data:       api.AlertsToListItems(records),
		Pagination: p.Meta(total),
	})
}

// handleListGroups handles GET /api/groups
func (h *APIHandler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		api.RespondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	p := api.ParsePagination(r)
	records, total, err := h.store.ListGroups(p.PerPage, p.Offset())
	if err != nil {
		log.Printf("APIHandler: Failed to list groups: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list groups")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data:       api.GroupsToListItems(records),
		Pagination: p.Meta(total),
	})
}

// Package handlers exposes the HTTP surface: alert ingestion, the query
// and management API, authentication and the live event stream.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/api"
	"github.com/alertpipe/alertpipe/internal/pipeline"
)

// WebhookHandler handles alert ingestion from monitoring systems
type WebhookHandler struct {
	pipeline *pipeline.Pipeline
}

// NewWebhookHandler creates a webhook handler over the pipeline
func NewWebhookHandler(p *pipeline.Pipeline) *WebhookHandler {
	return &WebhookHandler{pipeline: p}
}

// SetupRoutes sets up ingestion routes
func (h *WebhookHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/alert", h.handleIngest)
	mux.HandleFunc("POST /api/alerts/{id}/ack", h.handleAcknowledge)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", h.handleResolve)
}

// handleIngest handles POST /webhook/alert
func (h *WebhookHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw alerts.RawAlert
	if err := api.DecodeJSON(r, &raw); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Process(&raw)
	if err != nil {
		var verr *alerts.ValidationError
		if errors.As(err, &verr) {
			api.RespondError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		log.Printf("WebhookHandler: Failed to process alert: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to process alert")
		return
	}

	api.RespondJSON(w, http.StatusAccepted, api.IngestResponse{
		AlertID:      result.Alert.ID,
		GroupID:      result.GroupID,
		IsNew:        result.IsNew,
		Suppressed:   result.Suppressed,
		Score:        result.Score,
		EscalationID: result.EscalationID,
	})
}

// handleAcknowledge handles POST /api/alerts/{id}/ack
func (h *WebhookHandler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		api.RespondError(w, http.StatusBadRequest, "Alert id is required")
		return
	}

	acked := h.pipeline.Acknowledge(alertID)
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id":     alertID,
		"acknowledged": acked,
	})
}

// handleResolve handles POST /api/alerts/{id}/resolve
func (h *WebhookHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		api.RespondError(w, http.StatusBadRequest, "Alert id is required")
		return
	}

	h.pipeline.Resolve(alertID)
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id": alertID,
		"resolved": true,
	})
}

package api

import "time"

// ========== Auth Types ==========

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for POST /api/auth/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ========== Ingest Types ==========

// IngestResponse is the response body for POST /webhook/alert.
type IngestResponse struct {
	AlertID      string  `json:"alert_id"`
	GroupID      string  `json:"group_id"`
	IsNew        bool    `json:"is_new"`
	Suppressed   bool    `json:"suppressed"`
	Score        float64 `json:"score"`
	EscalationID string  `json:"escalation_id,omitempty"`
}

// ========== Pattern Types ==========

// UpdatePatternStatusRequest is the request body for PUT /api/patterns/:id/status.
type UpdatePatternStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active investigating resolved ignored"`
}

// ========== Business Context Types ==========

// RegisterContextRequest is the request body for POST /api/contexts.
type RegisterContextRequest struct {
	ServiceID      string  `json:"service_id" validate:"required"`
	Tier           int     `json:"tier" validate:"omitempty,min=1,max=3"`
	HourlyRevenue  float64 `json:"hourly_revenue"`
	DailyRevenue   float64 `json:"daily_revenue"`
	MonthlyRevenue float64 `json:"monthly_revenue"`
	TotalUsers     int     `json:"total_users"`
	AffectedUsers  int     `json:"affected_users"`
	VIPUsers       int     `json:"vip_users"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mapper Output Types ==========

// AlertListItem is a compact representation of a processed alert for list
// views. It omits the metadata blob to reduce response size.
type AlertListItem struct {
	AlertID       string    `json:"alert_id"`
	GroupID       string    `json:"group_id"`
	Fingerprint   string    `json:"fingerprint"`
	Source        string    `json:"source"`
	Severity      string    `json:"severity"`
	Message       string    `json:"message"`
	Tags          []string  `json:"tags,omitempty"`
	BusinessScore float64   `json:"business_score"`
	Suppressed    bool      `json:"suppressed"`
	Timestamp     time.Time `json:"timestamp"`
}

// GroupListItem is a compact representation of a dedup group snapshot.
type GroupListItem struct {
	GroupID     string     `json:"group_id"`
	Fingerprint string     `json:"fingerprint"`
	Source      string     `json:"source"`
	Severity    string     `json:"severity"`
	AlertCount  int        `json:"alert_count"`
	Suppressed  bool       `json:"suppressed"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
}

package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList is a JSON-encoded string slice column
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// ProcessedAlert is the durable record of one alert after it has passed
// through the pipeline.
type ProcessedAlert struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AlertID       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"alert_id"`
	Fingerprint   string     `gorm:"type:varchar(64);not null;index" json:"fingerprint"`
	GroupID       string     `gorm:"type:varchar(64);index" json:"group_id"`
	Source        string     `gorm:"type:varchar(255);not null;index" json:"source"`
	Severity      string     `gorm:"type:varchar(20);not null" json:"severity"`
	Message       string     `gorm:"type:text" json:"message"`
	Tags          StringList `gorm:"type:jsonb" json:"tags"`
	Metadata      JSONB      `gorm:"type:jsonb" json:"metadata"`
	BusinessScore float64    `gorm:"type:decimal(5,2)" json:"business_score"`
	Suppressed    bool       `gorm:"default:false" json:"suppressed"`
	Timestamp     time.Time  `gorm:"not null;index" json:"timestamp"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (ProcessedAlert) TableName() string {
	return "processed_alerts"
}

// GroupSnapshot mirrors a deduplication group for dashboards and restarts.
// The in-memory engine remains authoritative while the process is running.
type GroupSnapshot struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	GroupID     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"group_id"`
	Fingerprint string     `gorm:"type:varchar(64);not null;index" json:"fingerprint"`
	Source      string     `gorm:"type:varchar(255)" json:"source"`
	Severity    string     `gorm:"type:varchar(20)" json:"severity"`
	AlertCount  int        `gorm:"default:0" json:"alert_count"`
	Suppressed  bool       `gorm:"default:false" json:"suppressed"`
	FirstSeen   time.Time  `gorm:"not null" json:"first_seen"`
	LastSeen    time.Time  `gorm:"not null;index" json:"last_seen"`
	ExpiredAt   *time.Time `json:"expired_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (GroupSnapshot) TableName() string {
	return "group_snapshots"
}

// EventRecord is the durable copy of one analytics lifecycle event
type EventRecord struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	EventID       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_id"`
	AlertID       string     `gorm:"type:varchar(64);not null;index" json:"alert_id"`
	Type          string     `gorm:"type:varchar(20);not null;index" json:"type"`
	Source        string     `gorm:"type:varchar(255);index" json:"source"`
	Severity      string     `gorm:"type:varchar(20)" json:"severity"`
	DurationMs    int64      `gorm:"default:0" json:"duration_ms"`
	BusinessScore float64    `gorm:"type:decimal(5,2)" json:"business_score"`
	Tags          StringList `gorm:"type:jsonb" json:"tags"`
	Timestamp     time.Time  `gorm:"not null;index" json:"timestamp"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (EventRecord) TableName() string {
	return "event_records"
}

// BusinessContextRecord stores the per-service business context used by the
// scorer.
type BusinessContextRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ServiceID      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"service_id"`
	Tier           int       `gorm:"default:3" json:"tier"`
	HourlyRevenue  float64   `gorm:"type:decimal(14,2)" json:"hourly_revenue"`
	DailyRevenue   float64   `gorm:"type:decimal(14,2)" json:"daily_revenue"`
	MonthlyRevenue float64   `gorm:"type:decimal(14,2)" json:"monthly_revenue"`
	TotalUsers     int       `gorm:"default:0" json:"total_users"`
	AffectedUsers  int       `gorm:"default:0" json:"affected_users"`
	VIPUsers       int       `gorm:"default:0" json:"vip_users"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (BusinessContextRecord) TableName() string {
	return "business_contexts"
}

// SuppressionRuleRecord stores operator-managed suppression rules
type SuppressionRuleRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RuleID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"rule_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Priority  int       `gorm:"default:0" json:"priority"`
	Condition JSONB     `gorm:"type:jsonb;not null" json:"condition"`
	Permanent bool      `gorm:"default:false" json:"permanent"`
	Duration  int64     `gorm:"default:0" json:"duration_seconds"`
	Notify    bool      `gorm:"default:false" json:"notify"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SuppressionRuleRecord) TableName() string {
	return "suppression_rules"
}

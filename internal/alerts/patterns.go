package alerts

import "time"

// PatternStatus represents the lifecycle status of a detected pattern.
// Detection sets active; later transitions are operator-driven.
type PatternStatus string

const (
	PatternStatusActive        PatternStatus = "active"
	PatternStatusInvestigating PatternStatus = "investigating"
	PatternStatusResolved      PatternStatus = "resolved"
	PatternStatusIgnored       PatternStatus = "ignored"
)

// PatternCriteria is the closed variant set describing what a pattern
// matches on.
type PatternCriteria struct {
	Sources            []string   `json:"sources,omitempty"`
	Severities         []Severity `json:"severities,omitempty"`
	TimePattern        string     `json:"time_pattern,omitempty"`
	FrequencyThreshold int        `json:"frequency_threshold,omitempty"`
	CorrelationRules   []string   `json:"correlation_rules,omitempty"`
}

// PatternImpact summarizes the business impact of a pattern's occurrences
type PatternImpact struct {
	AvgBusinessScore  float64       `json:"avg_business_score"`
	AvgResolutionTime time.Duration `json:"avg_resolution_time"`
	EscalationRate    float64       `json:"escalation_rate"`
}

// AlertPattern is a detected recurring condition across the event history.
// Patterns are created or overwritten by detection passes keyed by a
// deterministic id (e.g. "high_freq_<source>"), never merged by content.
type AlertPattern struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Criteria        PatternCriteria `json:"criteria"`
	Confidence      float64         `json:"confidence"`
	Occurrences     int             `json:"occurrences"`
	LastSeen        time.Time       `json:"last_seen"`
	Impact          PatternImpact   `json:"impact"`
	Recommendations []string        `json:"recommendations"`
	Status          PatternStatus   `json:"status"`
}

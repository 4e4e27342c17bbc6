package alerts

import (
	"strings"
	"time"
)

// Severity represents normalized alert severity levels, ordered from least
// to most severe: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRanks maps severities onto their ordinal position
var severityRanks = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of the severity (low=0 .. critical=3).
// Unknown severities rank as low.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// IsValid reports whether the severity is one of the four known levels
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// MaxSeverity returns the more severe of a and b
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// DefaultSeverityMapping maps severity aliases used by common monitoring
// systems onto the normalized levels.
var DefaultSeverityMapping = map[Severity][]string{
	SeverityCritical: {"critical", "disaster", "p1", "emergency", "fatal"},
	SeverityHigh:     {"high", "major", "p2", "error", "severe"},
	SeverityMedium:   {"medium", "warning", "minor", "p3", "average", "warn"},
	SeverityLow:      {"low", "info", "informational", "p4", "notice", "debug"},
}

// NormalizeSeverity normalizes a severity string to a standard level.
// Unknown values default to medium.
func NormalizeSeverity(raw string) Severity {
	raw = strings.ToLower(strings.TrimSpace(raw))

	if s := Severity(raw); s.IsValid() {
		return s
	}

	for normalized, aliases := range DefaultSeverityMapping {
		for _, alias := range aliases {
			if alias == raw {
				return normalized
			}
		}
	}

	return SeverityMedium
}

// Alert is a single reported problem instance. It is created by an external
// reporter; the deduplication engine mutates Count, GroupID and Suppressed,
// and the pipeline attaches the business-impact score to Metadata.
type Alert struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Severity    Severity               `json:"severity"`
	Source      string                 `json:"source"`
	Message     string                 `json:"message"`
	Fingerprint string                 `json:"fingerprint,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Suppressed  bool                   `json:"suppressed"`
	GroupID     string                 `json:"group_id,omitempty"`
	Count       int                    `json:"count"`
}

// AlertGroup is the unit of deduplication: a cluster of alerts sharing a
// fingerprint (or high similarity) within a time window.
type AlertGroup struct {
	ID              string     `json:"id"`
	Fingerprint     string     `json:"fingerprint"`
	Alerts          []*Alert   `json:"alerts"`
	FirstSeen       time.Time  `json:"first_seen"`
	LastSeen        time.Time  `json:"last_seen"`
	Count           int        `json:"count"`
	Severity        Severity   `json:"severity"`
	Representative  *Alert     `json:"representative"`
	Suppressed      bool       `json:"suppressed"`
	SuppressedUntil *time.Time `json:"suppressed_until,omitempty"`
}

// Append adds an alert to the group, keeping count, lastSeen, severity and
// representative consistent. Group severity never decreases; the
// representative is replaced only by a strictly more severe alert.
func (g *AlertGroup) Append(a *Alert) {
	g.Alerts = append(g.Alerts, a)
	g.Count = len(g.Alerts)
	if a.Timestamp.After(g.LastSeen) {
		g.LastSeen = a.Timestamp
	}
	if a.Severity.Rank() > g.Severity.Rank() {
		g.Severity = a.Severity
		g.Representative = a
	}
}

// Package suppression evaluates time- and condition-based suppression rules
// against incoming alerts, independently of the dedup engine's group-level
// suppression.
package suppression

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// ConditionType identifies what a rule matches on
type ConditionType string

const (
	ConditionSource            ConditionType = "source"
	ConditionTag               ConditionType = "tag"
	ConditionMaintenanceWindow ConditionType = "maintenance_window"
	ConditionFrequency         ConditionType = "frequency"
)

// Condition is a rule's matching criterion
type Condition struct {
	Type ConditionType `json:"type" yaml:"type"`

	// Source match: exact source or prefix with trailing *
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Tag match: alert must carry all listed tags
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Maintenance window interval
	WindowStart time.Time `json:"window_start,omitempty" yaml:"window_start,omitempty"`
	WindowEnd   time.Time `json:"window_end,omitempty" yaml:"window_end,omitempty"`

	// Frequency-over-window threshold
	Threshold     int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	WindowMinutes int `json:"window_minutes,omitempty" yaml:"window_minutes,omitempty"`
}

// Rule is one suppression rule. Rules are evaluated in descending priority,
// then registration order; the first match wins.
type Rule struct {
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	Priority  int           `json:"priority" yaml:"priority"`
	Condition Condition     `json:"condition" yaml:"condition"`
	Permanent bool          `json:"permanent" yaml:"permanent"`
	Duration  time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Notify    bool          `json:"notify" yaml:"notify"`
	Enabled   bool          `json:"enabled" yaml:"enabled"`
}

// Decision is the outcome of rule evaluation for one alert
type Decision struct {
	Suppress bool       `json:"suppress"`
	RuleID   string     `json:"rule_id,omitempty"`
	RuleName string     `json:"rule_name,omitempty"`
	Until    *time.Time `json:"until,omitempty"`
	Notify   bool       `json:"notify"`
}

// Engine holds the ordered rule list plus the per-source arrival history the
// frequency condition needs.
type Engine struct {
	mu       sync.Mutex
	rules    []*Rule
	arrivals map[string][]time.Time
	seq      map[string]int
	nextSeq  int
}

// NewEngine creates an empty suppression engine
func NewEngine() *Engine {
	return &Engine{
		arrivals: make(map[string][]time.Time),
		seq:      make(map[string]int),
	}
}

// AddRule registers a rule. Rules keep registration order for priority ties.
func (e *Engine) AddRule(r *Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq[r.ID] = e.nextSeq
	e.nextSeq++
	e.rules = append(e.rules, r)
	sort.SliceStable(e.rules, func(i, j int) bool {
		if e.rules[i].Priority != e.rules[j].Priority {
			return e.rules[i].Priority > e.rules[j].Priority
		}
		return e.seq[e.rules[i].ID] < e.seq[e.rules[j].ID]
	})
}

// RemoveRule deletes a rule by id
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			delete(e.seq, id)
			return true
		}
	}
	return false
}

// Rules returns a snapshot of the registered rules in evaluation order
func (e *Engine) Rules() []*Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate checks the alert against all rules in priority order and
// short-circuits on the first match.
//
// Critical alerts are exempt from every condition except the maintenance
// window: planned maintenance silences everything in its window, while
// source, tag and frequency rules never mute a critical alert.
func (e *Engine) Evaluate(a *alerts.Alert) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recordArrival(a)

	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		if a.Severity == alerts.SeverityCritical && r.Condition.Type != ConditionMaintenanceWindow {
			continue
		}
		if !e.matches(r, a) {
			continue
		}
		d := Decision{
			Suppress: true,
			RuleID:   r.ID,
			RuleName: r.Name,
			Notify:   r.Notify,
		}
		switch {
		case r.Condition.Type == ConditionMaintenanceWindow:
			until := r.Condition.WindowEnd
			d.Until = &until
		case !r.Permanent && r.Duration > 0:
			until := a.Timestamp.Add(r.Duration)
			d.Until = &until
		}
		return d
	}

	return Decision{Suppress: false}
}

// matches evaluates one rule condition. Caller holds the lock.
func (e *Engine) matches(r *Rule, a *alerts.Alert) bool {
	c := r.Condition
	switch c.Type {
	case ConditionSource:
		if strings.HasSuffix(c.Source, "*") {
			return strings.HasPrefix(a.Source, strings.TrimSuffix(c.Source, "*"))
		}
		return a.Source == c.Source

	case ConditionTag:
		if len(c.Tags) == 0 {
			return false
		}
		have := make(map[string]bool, len(a.Tags))
		for _, t := range a.Tags {
			have[t] = true
		}
		for _, t := range c.Tags {
			if !have[t] {
				return false
			}
		}
		return true

	case ConditionMaintenanceWindow:
		return !a.Timestamp.Before(c.WindowStart) && !a.Timestamp.After(c.WindowEnd)

	case ConditionFrequency:
		if c.Threshold <= 0 || c.WindowMinutes <= 0 {
			return false
		}
		cutoff := a.Timestamp.Add(-time.Duration(c.WindowMinutes) * time.Minute)
		count := 0
		for _, ts := range e.arrivals[a.Source] {
			if !ts.Before(cutoff) {
				count++
			}
		}
		return count >= c.Threshold

	default:
		return false
	}
}

// recordArrival tracks per-source arrival timestamps, trimming entries older
// than the longest frequency window any rule uses (bounded at 24h).
func (e *Engine) recordArrival(a *alerts.Alert) {
	e.arrivals[a.Source] = append(e.arrivals[a.Source], a.Timestamp)

	cutoff := a.Timestamp.Add(-24 * time.Hour)
	kept := e.arrivals[a.Source][:0]
	for _, ts := range e.arrivals[a.Source] {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.arrivals[a.Source] = kept
}

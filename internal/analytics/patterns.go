package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// Detector thresholds and confidence caps
const (
	cascadeWindow        = 30 * time.Minute
	cascadeMinEvents     = 5
	cascadeMinSources    = 3
	peakHourFactor       = 1.5
	escalationMinEvents  = 3
	escalationConfidence = 0.85
)

// detectPatterns runs the four independent detectors against the retained
// event history. Each detector writes (or overwrites) a deterministically-
// keyed pattern; detectors may fire concurrently for the same underlying
// incident and are merged by id, never by content similarity.
// Caller holds the engine lock.
func (e *Engine) detectPatterns(now time.Time) {
	windowStart := now.Add(-e.cfg.analysisWindow())

	var inWindow []*alerts.AlertEvent
	for _, ev := range e.events {
		if !ev.Timestamp.Before(windowStart) {
			inWindow = append(inWindow, ev)
		}
	}

	e.detectHighFrequency(inWindow, now)
	e.detectCascadingFailure(inWindow, now)
	e.detectTimeOfDay(inWindow, now)
	e.detectSeverityEscalation(now)
}

// detectHighFrequency flags sources whose created-event count within the
// analysis window reaches the configured minimum.
// Confidence: min(0.95, occurrences/50).
func (e *Engine) detectHighFrequency(events []*alerts.AlertEvent, now time.Time) {
	counts := make(map[string]int)
	for _, ev := range events {
		if ev.Type == alerts.EventCreated {
			counts[ev.Source]++
		}
	}

	for source, n := range counts {
		if n < e.cfg.MinOccurrences {
			continue
		}
		id := "high_freq_" + source
		e.upsertPattern(&alerts.AlertPattern{
			ID:          id,
			Name:        fmt.Sprintf("High alert frequency from %s", source),
			Description: fmt.Sprintf("%d alerts from %s within the last %d minutes", n, source, e.cfg.AnalysisWindowMinutes),
			Criteria: alerts.PatternCriteria{
				Sources:            []string{source},
				FrequencyThreshold: e.cfg.MinOccurrences,
			},
			Confidence:  capConfidence(float64(n)/50, 0.95),
			Occurrences: n,
			LastSeen:    now,
			Impact:      e.impactFor(events, []string{source}),
			Recommendations: []string{
				fmt.Sprintf("Review alert thresholds for %s", source),
				fmt.Sprintf("Check %s for a recurring fault", source),
				"Consider a suppression rule while investigating",
			},
		})
	}
}

// detectCascadingFailure flags bursts of created events in the trailing 30
// minutes spanning several distinct sources.
// Confidence: min(0.9, distinctSources/10).
func (e *Engine) detectCascadingFailure(events []*alerts.AlertEvent, now time.Time) {
	cutoff := now.Add(-cascadeWindow)

	sources := make(map[string]bool)
	count := 0
	for _, ev := range events {
		if ev.Type != alerts.EventCreated || ev.Timestamp.Before(cutoff) {
			continue
		}
		count++
		sources[ev.Source] = true
	}

	if count < cascadeMinEvents || len(sources) < cascadeMinSources {
		return
	}

	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, s)
	}
	sort.Strings(names)

	e.upsertPattern(&alerts.AlertPattern{
		ID:          "cascading_failure",
		Name:        "Cascading failure",
		Description: fmt.Sprintf("%d alerts across %d sources within 30 minutes", count, len(sources)),
		Criteria: alerts.PatternCriteria{
			Sources:          names,
			CorrelationRules: []string{"multi_source_burst"},
		},
		Confidence:  capConfidence(float64(len(sources))/10, 0.9),
		Occurrences: count,
		LastSeen:    now,
		Impact:      e.impactFor(events, names),
		Recommendations: []string{
			"Check shared infrastructure (network, database, DNS)",
			"Review recent deployments across the affected services",
			"Open a single incident covering all affected sources",
		},
	})
}

// detectTimeOfDay flags sources whose alerts cluster into peak hours: hours
// exceeding 1.5x the per-source hourly average, for sources meeting the
// minimum-occurrence threshold.
// Confidence: min(0.8, peakHourCount/8).
func (e *Engine) detectTimeOfDay(events []*alerts.AlertEvent, now time.Time) {
	histograms := make(map[string]map[int]int)
	totals := make(map[string]int)

	for _, ev := range events {
		if ev.Type != alerts.EventCreated {
			continue
		}
		if histograms[ev.Source] == nil {
			histograms[ev.Source] = make(map[int]int)
		}
		histograms[ev.Source][ev.Timestamp.Hour()]++
		totals[ev.Source]++
	}

	for source, hist := range histograms {
		if totals[source] < e.cfg.MinOccurrences {
			continue
		}

		avg := float64(totals[source]) / float64(len(hist))
		var peaks []int
		for hour, n := range hist {
			if float64(n) > peakHourFactor*avg {
				peaks = append(peaks, hour)
			}
		}
		if len(peaks) == 0 {
			continue
		}
		sort.Ints(peaks)

		e.upsertPattern(&alerts.AlertPattern{
			ID:          "time_pattern_" + source,
			Name:        fmt.Sprintf("Time-of-day clustering for %s", source),
			Description: fmt.Sprintf("Alerts from %s cluster into peak hours %v", source, peaks),
			Criteria: alerts.PatternCriteria{
				Sources:     []string{source},
				TimePattern: fmt.Sprintf("peak_hours:%v", peaks),
			},
			Confidence:  capConfidence(float64(len(peaks))/8, 0.8),
			Occurrences: totals[source],
			LastSeen:    now,
			Impact:      e.impactFor(events, []string{source}),
			Recommendations: []string{
				fmt.Sprintf("Correlate %s peak hours with scheduled jobs or traffic cycles", source),
				"Consider time-based alert thresholds",
			},
		})
	}
}

// detectSeverityEscalation flags alert ids whose events carry strictly
// increasing severities in arrival order, over the full retained history.
// Fires at three or more events with fixed confidence 0.85; the escalation
// rate is 100 by construction.
func (e *Engine) detectSeverityEscalation(now time.Time) {
	byAlert := make(map[string][]*alerts.AlertEvent)
	for _, ev := range e.events {
		byAlert[ev.AlertID] = append(byAlert[ev.AlertID], ev)
	}

	for alertID, evs := range byAlert {
		if len(evs) < escalationMinEvents {
			continue
		}
		increasing := true
		for i := 1; i < len(evs); i++ {
			if evs[i].Severity.Rank() <= evs[i-1].Severity.Rank() {
				increasing = false
				break
			}
		}
		if !increasing {
			continue
		}

		e.upsertPattern(&alerts.AlertPattern{
			ID:          "severity_escalation_" + alertID,
			Name:        fmt.Sprintf("Severity escalation for alert %s", alertID),
			Description: fmt.Sprintf("Alert %s escalated through %d severities without resolution", alertID, len(evs)),
			Criteria: alerts.PatternCriteria{
				Severities:       severitySequence(evs),
				CorrelationRules: []string{"strictly_increasing_severity"},
			},
			Confidence:  escalationConfidence,
			Occurrences: len(evs),
			LastSeen:    now,
			Impact: alerts.PatternImpact{
				AvgBusinessScore: avgScore(evs),
				EscalationRate:   100,
			},
			Recommendations: []string{
				fmt.Sprintf("Prioritize alert %s before it reaches critical", alertID),
				"Check whether earlier remediation attempts failed",
			},
		})
	}
}

// upsertPattern writes a pattern under its deterministic id, preserving an
// operator-set status on overwrite. Caller holds the engine lock.
func (e *Engine) upsertPattern(p *alerts.AlertPattern) {
	if existing, ok := e.patterns[p.ID]; ok {
		p.Status = existing.Status
	} else {
		p.Status = alerts.PatternStatusActive
	}
	e.patterns[p.ID] = p
	e.publishPattern(p)
}

// impactFor summarizes business impact for events from the given sources
func (e *Engine) impactFor(events []*alerts.AlertEvent, sources []string) alerts.PatternImpact {
	set := make(map[string]bool, len(sources))
	for _, s := range sources {
		set[s] = true
	}

	var matched []*alerts.AlertEvent
	for _, ev := range events {
		if set[ev.Source] {
			matched = append(matched, ev)
		}
	}

	return alerts.PatternImpact{
		AvgBusinessScore:  avgScore(matched),
		AvgResolutionTime: time.Duration(meanTimeTo(matched, alerts.EventResolved)) * time.Millisecond,
		EscalationRate:    ratePerAlert(matched, alerts.EventEscalated),
	}
}

func avgScore(events []*alerts.AlertEvent) float64 {
	scores := scoreValues(events)
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func severitySequence(events []*alerts.AlertEvent) []alerts.Severity {
	out := make([]alerts.Severity, len(events))
	for i, ev := range events {
		out[i] = ev.Severity
	}
	return out
}

func capConfidence(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}

package analytics

import (
	"math"
	"sort"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// Metric names accepted by the query engine
const (
	MetricCount           = "count"
	MetricMTTR            = "mttr"
	MetricMTTA            = "mtta"
	MetricScoreAvg        = "score_avg"
	MetricScoreP95        = "score_p95"
	MetricFrequency       = "frequency"
	MetricEscalationRate  = "escalation_rate"
	MetricSuppressionRate = "suppression_rate"
)

var validMetrics = map[string]bool{
	MetricCount: true, MetricMTTR: true, MetricMTTA: true,
	MetricScoreAvg: true, MetricScoreP95: true, MetricFrequency: true,
	MetricEscalationRate: true, MetricSuppressionRate: true,
}

// percentile returns the nearest-rank percentile of the values: the element
// at index ceil(p/100 x n) - 1 of the ascending sort, clamped into range.
// Not interpolated.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// computeMetric evaluates one named metric over a set of events.
// Durations (mttr, mtta) are reported in milliseconds.
func computeMetric(name string, events []*alerts.AlertEvent, spanHours float64) float64 {
	switch name {
	case MetricCount:
		return float64(len(events))
	case MetricMTTR:
		return meanTimeTo(events, alerts.EventResolved)
	case MetricMTTA:
		return meanTimeTo(events, alerts.EventAcknowledged)
	case MetricScoreAvg:
		scores := scoreValues(events)
		if len(scores) == 0 {
			return 0
		}
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	case MetricScoreP95:
		return percentile(scoreValues(events), 95)
	case MetricFrequency:
		if spanHours <= 0 {
			return 0
		}
		return float64(countType(events, alerts.EventCreated)) / spanHours
	case MetricEscalationRate:
		return ratePerAlert(events, alerts.EventEscalated)
	case MetricSuppressionRate:
		return ratePerAlert(events, alerts.EventSuppressed)
	default:
		return 0
	}
}

// meanTimeTo averages, per alert id, the delta between the earliest created
// event and the first event of the terminal type, in milliseconds. Alerts
// missing either endpoint contribute nothing to the average.
func meanTimeTo(events []*alerts.AlertEvent, terminal alerts.EventType) float64 {
	type endpoints struct {
		created  *alerts.AlertEvent
		terminal *alerts.AlertEvent
	}
	byAlert := make(map[string]*endpoints)

	for _, ev := range events {
		ep := byAlert[ev.AlertID]
		if ep == nil {
			ep = &endpoints{}
			byAlert[ev.AlertID] = ep
		}
		switch ev.Type {
		case alerts.EventCreated:
			if ep.created == nil || ev.Timestamp.Before(ep.created.Timestamp) {
				ep.created = ev
			}
		case terminal:
			if ep.terminal == nil || ev.Timestamp.Before(ep.terminal.Timestamp) {
				ep.terminal = ev
			}
		}
	}

	sum := 0.0
	n := 0
	for _, ep := range byAlert {
		if ep.created == nil || ep.terminal == nil {
			continue
		}
		delta := ep.terminal.Timestamp.Sub(ep.created.Timestamp)
		if delta < 0 {
			continue
		}
		sum += float64(delta.Milliseconds())
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ratePerAlert returns the percentage of distinct alert ids in the event set
// that have at least one event of the given type.
func ratePerAlert(events []*alerts.AlertEvent, t alerts.EventType) float64 {
	all := make(map[string]bool)
	hit := make(map[string]bool)
	for _, ev := range events {
		all[ev.AlertID] = true
		if ev.Type == t {
			hit[ev.AlertID] = true
		}
	}
	if len(all) == 0 {
		return 0
	}
	return float64(len(hit)) / float64(len(all)) * 100
}

// scoreValues collects the business scores attached to events, skipping
// unscored ones.
func scoreValues(events []*alerts.AlertEvent) []float64 {
	var scores []float64
	for _, ev := range events {
		if ev.BusinessScore > 0 {
			scores = append(scores, ev.BusinessScore)
		}
	}
	return scores
}

func countType(events []*alerts.AlertEvent, t alerts.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// Aggregations are the overall rollups attached to every report
type Aggregations struct {
	SeverityDistribution map[alerts.Severity]int `json:"severity_distribution"`
	HourlyDistribution   map[int]int             `json:"hourly_distribution"`
	ResolutionStats      ResolutionStats         `json:"resolution_stats"`
}

// ResolutionStats summarizes how many alerts in the window reached a
// terminal resolved event.
type ResolutionStats struct {
	TotalAlerts    int     `json:"total_alerts"`
	ResolvedAlerts int     `json:"resolved_alerts"`
	ResolutionRate float64 `json:"resolution_rate"`
	AvgResolveMs   float64 `json:"avg_resolve_ms"`
}

// computeAggregations builds the overall rollups for a filtered event set
func computeAggregations(events []*alerts.AlertEvent) Aggregations {
	agg := Aggregations{
		SeverityDistribution: make(map[alerts.Severity]int),
		HourlyDistribution:   make(map[int]int),
	}

	created := make(map[string]bool)
	resolved := make(map[string]bool)

	for _, ev := range events {
		agg.SeverityDistribution[ev.Severity]++
		agg.HourlyDistribution[ev.Timestamp.Hour()]++
		switch ev.Type {
		case alerts.EventCreated:
			created[ev.AlertID] = true
		case alerts.EventResolved:
			resolved[ev.AlertID] = true
		}
	}

	agg.ResolutionStats.TotalAlerts = len(created)
	for id := range resolved {
		if created[id] {
			agg.ResolutionStats.ResolvedAlerts++
		}
	}
	if agg.ResolutionStats.TotalAlerts > 0 {
		agg.ResolutionStats.ResolutionRate = float64(agg.ResolutionStats.ResolvedAlerts) / float64(agg.ResolutionStats.TotalAlerts) * 100
	}
	agg.ResolutionStats.AvgResolveMs = meanTimeTo(events, alerts.EventResolved)

	return agg
}

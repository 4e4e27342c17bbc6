package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// Group-by dimensions accepted by the query engine
const (
	DimSource   = "source"
	DimSeverity = "severity"
	DimTag      = "tag"
	DimHour     = "hour"
	DimDay      = "day"
)

var validDimensions = map[string]bool{
	DimSource: true, DimSeverity: true, DimTag: true, DimHour: true, DimDay: true,
}

// Query describes one analytics request. The full query (time range
// included) forms the cache key.
type Query struct {
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Sources    []string           `json:"sources,omitempty"`
	Severities []alerts.Severity  `json:"severities,omitempty"`
	Tags       []string           `json:"tags,omitempty"`
	EventTypes []alerts.EventType `json:"event_types,omitempty"`
	MinScore   *float64           `json:"min_score,omitempty"`
	MaxScore   *float64           `json:"max_score,omitempty"`
	GroupBy    []string           `json:"group_by,omitempty"`
	Metrics    []string           `json:"metrics,omitempty"`
}

// QueryError wraps a malformed query with the original query attached for
// diagnosis.
type QueryError struct {
	Query  *Query
	Reason string
}

func (e *QueryError) Error() string {
	q, _ := json.Marshal(e.Query)
	return fmt.Sprintf("invalid analytics query: %s (query: %s)", e.Reason, q)
}

// validate checks the query contract before execution
func (q *Query) validate() error {
	if q.End.Before(q.Start) {
		return &QueryError{Query: q, Reason: "end precedes start"}
	}
	for _, m := range q.Metrics {
		if !validMetrics[m] {
			return &QueryError{Query: q, Reason: fmt.Sprintf("unknown metric %q", m)}
		}
	}
	for _, d := range q.GroupBy {
		if !validDimensions[d] {
			return &QueryError{Query: q, Reason: fmt.Sprintf("unknown group-by dimension %q", d)}
		}
	}
	for _, t := range q.EventTypes {
		known := false
		for _, vt := range alerts.ValidEventTypes {
			if t == vt {
				known = true
				break
			}
		}
		if !known {
			return &QueryError{Query: q, Reason: fmt.Sprintf("unknown event type %q", t)}
		}
	}
	return nil
}

// cacheKey serializes the full query deterministically
func (q *Query) cacheKey() string {
	b, _ := json.Marshal(q)
	return string(b)
}

// matches reports whether an event passes the query's filter set
func (q *Query) matches(ev *alerts.AlertEvent) bool {
	if ev.Timestamp.Before(q.Start) || ev.Timestamp.After(q.End) {
		return false
	}
	if len(q.Sources) > 0 && !containsString(q.Sources, ev.Source) {
		return false
	}
	if len(q.Severities) > 0 {
		found := false
		for _, s := range q.Severities {
			if ev.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.EventTypes) > 0 {
		found := false
		for _, t := range q.EventTypes {
			if ev.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Tags) > 0 {
		found := false
		for _, want := range q.Tags {
			if containsString(ev.Tags, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.MinScore != nil && ev.BusinessScore < *q.MinScore {
		return false
	}
	if q.MaxScore != nil && ev.BusinessScore > *q.MaxScore {
		return false
	}
	return true
}

// Row is one aggregate output row, keyed by the ordered concatenation of
// the per-dimension values.
type Row struct {
	Key     string             `json:"key"`
	Values  []string           `json:"values"`
	Metrics map[string]float64 `json:"metrics"`
}

// Report is the full result of a query
type Report struct {
	Query     *Query       `json:"query"`
	Rows      []Row        `json:"rows"`
	Overall   Aggregations `json:"overall"`
	FromCache bool         `json:"-"`
}

// execute runs the query over a snapshot of the event log
func execute(q *Query, events []*alerts.AlertEvent) *Report {
	filtered := make([]*alerts.AlertEvent, 0)
	for _, ev := range events {
		if q.matches(ev) {
			filtered = append(filtered, ev)
		}
	}

	spanHours := q.End.Sub(q.Start).Hours()
	metrics := q.Metrics
	if len(metrics) == 0 {
		metrics = []string{MetricCount}
	}

	report := &Report{Query: q, Overall: computeAggregations(filtered)}

	if len(q.GroupBy) == 0 {
		row := Row{Key: "all", Metrics: make(map[string]float64)}
		for _, m := range metrics {
			row.Metrics[m] = computeMetric(m, filtered, spanHours)
		}
		report.Rows = []Row{row}
		return report
	}

	groups := make(map[string][]*alerts.AlertEvent)
	keyValues := make(map[string][]string)
	for _, ev := range filtered {
		for _, vals := range dimensionValues(q.GroupBy, ev) {
			key := strings.Join(vals, "|")
			groups[key] = append(groups[key], ev)
			keyValues[key] = vals
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		row := Row{Key: key, Values: keyValues[key], Metrics: make(map[string]float64)}
		for _, m := range metrics {
			row.Metrics[m] = computeMetric(m, groups[key], spanHours)
		}
		report.Rows = append(report.Rows, row)
	}

	return report
}

// dimensionValues expands an event into its per-dimension value tuples.
// Every dimension yields exactly one value except tag, which fans the event
// out into one tuple per tag it carries.
func dimensionValues(dims []string, ev *alerts.AlertEvent) [][]string {
	tuples := [][]string{{}}

	for _, dim := range dims {
		var vals []string
		switch dim {
		case DimSource:
			vals = []string{ev.Source}
		case DimSeverity:
			vals = []string{string(ev.Severity)}
		case DimHour:
			vals = []string{strconv.Itoa(ev.Timestamp.Hour())}
		case DimDay:
			vals = []string{ev.Timestamp.Format("2006-01-02")}
		case DimTag:
			if len(ev.Tags) == 0 {
				vals = []string{""}
			} else {
				vals = ev.Tags
			}
		}

		next := make([][]string, 0, len(tuples)*len(vals))
		for _, tuple := range tuples {
			for _, v := range vals {
				extended := make([]string, len(tuple), len(tuple)+1)
				copy(extended, tuple)
				next = append(next, append(extended, v))
			}
		}
		tuples = next
	}

	return tuples
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

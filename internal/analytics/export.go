package analytics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// Snapshot is the diagnostic export of the engine's full state: the retained
// event log, current patterns and a metrics rollup. It is a reporting
// interface, not a durability guarantee.
type Snapshot struct {
	ExportedAt time.Time              `json:"exported_at"`
	Events     []*alerts.AlertEvent   `json:"events"`
	Patterns   []*alerts.AlertPattern `json:"patterns"`
	Metrics    Aggregations           `json:"metrics"`
}

// Snapshot captures the engine's current state
func (e *Engine) Snapshot() *Snapshot {
	events := e.Events()
	return &Snapshot{
		ExportedAt: time.Now(),
		Events:     events,
		Patterns:   e.GetPatterns(""),
		Metrics:    computeAggregations(events),
	}
}

// ExportJSON dumps the snapshot as indented JSON
func (e *Engine) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(e.Snapshot(), "", "  ")
}

// ParseSnapshot re-parses a JSON export
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse analytics export: %w", err)
	}
	return &s, nil
}

// ExportCSV dumps the snapshot as CSV: an event section followed by a
// pattern section, separated by a blank record.
func (e *Engine) ExportCSV() ([]byte, error) {
	s := e.Snapshot()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"event_id", "alert_id", "type", "timestamp", "source", "severity", "duration_ms", "business_score"}); err != nil {
		return nil, err
	}
	for _, ev := range s.Events {
		record := []string{
			ev.ID,
			ev.AlertID,
			string(ev.Type),
			ev.Timestamp.Format(time.RFC3339Nano),
			ev.Source,
			string(ev.Severity),
			strconv.FormatInt(ev.Duration.Milliseconds(), 10),
			strconv.FormatFloat(ev.BusinessScore, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	if err := w.Write([]string{""}); err != nil {
		return nil, err
	}

	if err := w.Write([]string{"pattern_id", "name", "status", "confidence", "occurrences", "last_seen"}); err != nil {
		return nil, err
	}
	for _, p := range s.Patterns {
		record := []string{
			p.ID,
			p.Name,
			string(p.Status),
			strconv.FormatFloat(p.Confidence, 'f', 4, 64),
			strconv.Itoa(p.Occurrences),
			p.LastSeen.Format(time.RFC3339Nano),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

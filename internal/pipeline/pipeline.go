// Package pipeline orchestrates the alert-processing stages in a fixed
// order: deduplication, scoring, suppression rules, escalation, analytics
// recording. One alert is processed to completion before the next, so no
// two stages race on the same alert's mutable state.
package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/analytics"
	"github.com/alertpipe/alertpipe/internal/dedup"
	"github.com/alertpipe/alertpipe/internal/escalation"
	"github.com/alertpipe/alertpipe/internal/notify"
	"github.com/alertpipe/alertpipe/internal/scoring"
	"github.com/alertpipe/alertpipe/internal/suppression"
)

// Result is the pipeline's output for one processed alert
type Result struct {
	Alert         *alerts.Alert   `json:"alert"`
	IsNew         bool            `json:"is_new"`
	GroupID       string          `json:"group_id"`
	Suppressed    bool            `json:"suppressed"`
	SimilarAlerts []*alerts.Alert `json:"similar_alerts,omitempty"`
	Score         float64         `json:"score"`
	EscalationID  string          `json:"escalation_id,omitempty"`
}

// Sink receives processed alerts and lifecycle events for persistence.
// Write failures must not fail alert processing; implementations log and
// move on.
type Sink interface {
	SaveAlert(a *alerts.Alert, score float64) error
	RecordEvent(ev *alerts.AlertEvent) error
}

// Pipeline wires the engines together. Each engine owns its own state and
// timers; Stop tears the whole stack down for clean test teardown.
type Pipeline struct {
	dedup      *dedup.Engine
	scorer     *scoring.Scorer
	suppressor *suppression.Engine
	escalator  *escalation.Manager
	analytics  *analytics.Engine
	notifier   notify.Notifier
	sink       Sink

	mu sync.Mutex
}

// New assembles a pipeline from its engines. All engines are required
// except the notifier, which defaults to the log notifier, and the sink,
// which may be nil to skip persistence.
func New(d *dedup.Engine, s *scoring.Scorer, sup *suppression.Engine, esc *escalation.Manager, a *analytics.Engine, n notify.Notifier, sink Sink) *Pipeline {
	if n == nil {
		n = notify.LogNotifier{}
	}
	p := &Pipeline{
		dedup:      d,
		scorer:     s,
		suppressor: sup,
		escalator:  esc,
		analytics:  a,
		notifier:   n,
		sink:       sink,
	}
	// Escalation starts and step advances flow back into the event log, so
	// escalation_rate and pattern impact see them.
	esc.SetRecorder(func(st escalation.State) {
		p.recordEvent(&alerts.AlertEvent{
			AlertID:   st.AlertID,
			Type:      alerts.EventEscalated,
			Timestamp: time.Now(),
			Source:    st.Source,
			Severity:  st.Severity,
		})
	})
	return p
}

// Start launches the engines' background sweeps
func (p *Pipeline) Start() {
	p.dedup.Start()
	p.analytics.Start()
}

// Stop halts all background work
func (p *Pipeline) Stop() {
	p.dedup.Stop()
	p.analytics.Stop()
	p.escalator.Stop()
}

// Process runs one raw alert through every stage. Business outcomes
// (suppression, no pattern found) are never errors; errors are reserved for
// input that violates the contract.
func (p *Pipeline) Process(raw *alerts.RawAlert) (*Result, error) {
	alert, err := alerts.ParseAlert(raw)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dres := p.dedup.Process(alert)

	score := p.scorer.Score(scoring.Input{
		Alert:     alert,
		Frequency: alert.Count,
		Duration:  p.firingDuration(alert, dres),
	})
	if alert.Metadata == nil {
		alert.Metadata = make(map[string]interface{})
	}
	alert.Metadata["business_score"] = score

	suppressed := dres.Suppressed
	decision := p.suppressor.Evaluate(alert)
	if decision.Suppress {
		suppressed = true
		alert.Suppressed = true
		if decision.Notify {
			err := p.notifier.Deliver(notify.Notification{
				Title:    "Alert suppressed by rule " + decision.RuleName,
				Body:     alert.Message,
				Severity: string(alert.Severity),
				AlertID:  alert.ID,
			}, nil)
			if err != nil {
				log.Printf("Failed to deliver suppression notification for alert %s: %v", alert.ID, err)
			}
		}
	}

	result := &Result{
		Alert:         alert,
		IsNew:         dres.IsNew,
		GroupID:       dres.GroupID,
		Suppressed:    suppressed,
		SimilarAlerts: dres.SimilarAlerts,
		Score:         score,
	}

	if !suppressed {
		if _, acked := p.acknowledged(alert.ID); !acked {
			escID, err := p.escalator.Start(alert.ID, alert.Severity, alert.Source)
			if err != nil {
				// No policy configured is an operational gap, not a
				// processing failure.
				log.Printf("Escalation not started for alert %s: %v", alert.ID, err)
			} else {
				result.EscalationID = escID
			}
		}
	}

	p.record(alert, dres, score, suppressed)

	if p.sink != nil {
		if err := p.sink.SaveAlert(alert, score); err != nil {
			log.Printf("Failed to persist alert %s: %v", alert.ID, err)
		}
	}

	return result, nil
}

// Acknowledge marks an alert acknowledged, halting its escalation and
// recording the lifecycle event.
func (p *Pipeline) Acknowledge(alertID string) bool {
	ok := p.escalator.Acknowledge(alertID)
	p.recordEvent(&alerts.AlertEvent{
		AlertID:   alertID,
		Type:      alerts.EventAcknowledged,
		Timestamp: time.Now(),
	})
	return ok
}

// Resolve records an alert's resolution
func (p *Pipeline) Resolve(alertID string) {
	p.recordEvent(&alerts.AlertEvent{
		AlertID:   alertID,
		Type:      alerts.EventResolved,
		Timestamp: time.Now(),
	})
}

// Analytics exposes the analytics engine for queries and export
func (p *Pipeline) Analytics() *analytics.Engine {
	return p.analytics
}

// DedupStats exposes the running deduplication counters
func (p *Pipeline) DedupStats() dedup.Stats {
	return p.dedup.Stats()
}

// firingDuration estimates how long the alert's condition has been firing:
// the span from its group's first sighting to this alert.
func (p *Pipeline) firingDuration(a *alerts.Alert, dres *dedup.Result) time.Duration {
	if dres.IsNew || a.Timestamp.Before(dres.FirstSeen) {
		return 0
	}
	return a.Timestamp.Sub(dres.FirstSeen)
}

// acknowledged reports whether the alert already has a terminal escalation
func (p *Pipeline) acknowledged(alertID string) (escalation.State, bool) {
	st, ok := p.escalator.StateFor(alertID)
	return st, ok && st.Status == escalation.StatusAcknowledged
}

// record emits the lifecycle events for one processed alert
func (p *Pipeline) record(a *alerts.Alert, dres *dedup.Result, score float64, suppressed bool) {
	base := alerts.AlertEvent{
		AlertID:       a.ID,
		Source:        a.Source,
		Severity:      a.Severity,
		Timestamp:     a.Timestamp,
		BusinessScore: score,
		Tags:          a.Tags,
	}

	created := base
	created.Type = alerts.EventCreated
	p.recordEvent(&created)

	if !dres.IsNew {
		grouped := base
		grouped.Type = alerts.EventGrouped
		p.recordEvent(&grouped)
	}
	if suppressed {
		supp := base
		supp.Type = alerts.EventSuppressed
		p.recordEvent(&supp)
	}
}

// recordEvent feeds one lifecycle event to analytics and the sink
func (p *Pipeline) recordEvent(ev *alerts.AlertEvent) {
	p.analytics.Record(ev)
	if p.sink != nil {
		if err := p.sink.RecordEvent(ev); err != nil {
			log.Printf("Failed to persist event for alert %s: %v", ev.AlertID, err)
		}
	}
}

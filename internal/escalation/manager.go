// Package escalation drives a per-alert state machine across ordered policy
// steps with wait timers and role-based notification targets.
package escalation

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/bus"
	"github.com/alertpipe/alertpipe/internal/notify"
)

// Status of an escalation state machine
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusExhausted    Status = "exhausted"
)

// State tracks one alert's progress through its policy. Step deadlines are
// absolute timestamps chained from the start time, so repeated re-arming
// cannot accumulate drift.
type State struct {
	ID            string          `json:"id"`
	AlertID       string          `json:"alert_id"`
	PolicyID      string          `json:"policy_id"`
	Severity      alerts.Severity `json:"severity"`
	Source        string          `json:"source"`
	StepIndex     int             `json:"step_index"`
	EnteredStepAt time.Time       `json:"entered_step_at"`
	Deadline      time.Time       `json:"deadline"`
	Status        Status          `json:"status"`
	AckedAtStep   int             `json:"acked_at_step"`
	StartedAt     time.Time       `json:"started_at"`
}

// Manager owns escalation policies, per-alert states and their step timers
type Manager struct {
	mu               sync.Mutex
	policies         map[string]*Policy
	policyBySeverity map[alerts.Severity]string
	defaultPolicy    string
	states           map[string]*State // by alert id
	timers           map[string]*time.Timer

	schedule *Schedule
	notifier notify.Notifier
	bus      *bus.Bus
	recorder func(State)
	stopped  bool
}

// NewManager creates an escalation manager. A nil notifier falls back to
// the log notifier.
func NewManager(schedule *Schedule, notifier notify.Notifier, b *bus.Bus) *Manager {
	if schedule == nil {
		schedule = NewSchedule()
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Manager{
		policies:         make(map[string]*Policy),
		policyBySeverity: make(map[alerts.Severity]string),
		states:           make(map[string]*State),
		timers:           make(map[string]*time.Timer),
		schedule:         schedule,
		notifier:         notifier,
		bus:              b,
	}
}

// SetRecorder registers a callback invoked with a state snapshot whenever
// an escalation starts or advances a step. The pipeline uses it to feed
// escalated lifecycle events into analytics.
func (m *Manager) SetRecorder(rec func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = rec
}

// RegisterPolicy validates and registers a policy
func (m *Manager) RegisterPolicy(p *Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
	if m.defaultPolicy == "" {
		m.defaultPolicy = p.ID
	}
	return nil
}

// SetDefaultPolicy overrides the fallback policy for severities with no
// explicit mapping. The default is otherwise the first registered policy.
func (m *Manager) SetDefaultPolicy(policyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[policyID]; !ok {
		return fmt.Errorf("unknown escalation policy %s", policyID)
	}
	m.defaultPolicy = policyID
	return nil
}

// SetPolicyForSeverity routes alerts of a severity to a policy
func (m *Manager) SetPolicyForSeverity(sev alerts.Severity, policyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[policyID]; !ok {
		return fmt.Errorf("unknown escalation policy %s", policyID)
	}
	m.policyBySeverity[sev] = policyID
	return nil
}

// Start begins escalation for an alert. The first step's roles are notified
// immediately and a timer is armed at the step's absolute deadline. Starting
// an alert that is already escalating returns the existing escalation id.
func (m *Manager) Start(alertID string, severity alerts.Severity, source string) (string, error) {
	if alertID == "" {
		return "", fmt.Errorf("escalation requires an alert id")
	}

	m.mu.Lock()
	if existing, ok := m.states[alertID]; ok && existing.Status == StatusActive {
		m.mu.Unlock()
		return existing.ID, nil
	}

	policyID, ok := m.policyBySeverity[severity]
	if !ok {
		policyID = m.defaultPolicy
	}
	policy, ok := m.policies[policyID]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("no escalation policy registered for severity %s", severity)
	}

	now := time.Now()
	st := &State{
		ID:            uuid.New().String(),
		AlertID:       alertID,
		PolicyID:      policy.ID,
		Severity:      severity,
		Source:        source,
		StepIndex:     0,
		EnteredStepAt: now,
		Deadline:      now.Add(policy.Steps[0].Wait()),
		Status:        StatusActive,
		AckedAtStep:   -1,
		StartedAt:     now,
	}
	m.states[alertID] = st
	m.armTimer(st, policy)
	step := policy.Steps[0]
	rec := m.recorder
	snapshot := *st
	m.mu.Unlock()

	m.notifyStep(snapshot, step)
	m.publish(bus.KindEscalationStarted, snapshot)
	if rec != nil {
		rec(snapshot)
	}

	return snapshot.ID, nil
}

// armTimer schedules the advance check at the state's absolute deadline.
// Caller holds the lock. The fired callback re-validates state instead of
// trusting cancellation, so a late-firing timer cannot advance an
// already-acknowledged escalation.
func (m *Manager) armTimer(st *State, policy *Policy) {
	if old, ok := m.timers[st.AlertID]; ok {
		old.Stop()
	}
	alertID := st.AlertID
	expectStep := st.StepIndex
	deadline := st.Deadline
	m.timers[alertID] = time.AfterFunc(time.Until(deadline), func() {
		m.fire(alertID, expectStep, deadline)
	})
}

// fire advances the state machine when the timer goes off, after checking
// the state is still the one the timer was armed for.
func (m *Manager) fire(alertID string, expectStep int, deadline time.Time) {
	m.mu.Lock()
	st, ok := m.states[alertID]
	if !ok || m.stopped || st.Status != StatusActive || st.StepIndex != expectStep || !st.Deadline.Equal(deadline) {
		m.mu.Unlock()
		return
	}

	policy := m.policies[st.PolicyID]
	next := st.StepIndex + 1
	if next >= len(policy.Steps) {
		st.Status = StatusExhausted
		delete(m.timers, alertID)
		snapshot := *st
		m.mu.Unlock()

		log.Printf("Escalation for alert %s exhausted all %d steps without acknowledgment", alertID, len(policy.Steps))
		m.publish(bus.KindEscalationExhausted, snapshot)
		m.notifier.Deliver(notify.Notification{
			Title:    "Escalation exhausted",
			Body:     fmt.Sprintf("Alert %s from %s ran through all escalation steps unacknowledged", alertID, snapshot.Source),
			Severity: string(snapshot.Severity),
			AlertID:  alertID,
		}, m.schedule.Resolve(policy.Steps[len(policy.Steps)-1].Roles[0], time.Now()))
		return
	}

	st.StepIndex = next
	st.EnteredStepAt = time.Now()
	// Chain from the previous absolute deadline, not from now, so firing
	// latency does not accumulate across steps.
	st.Deadline = deadline.Add(policy.Steps[next].Wait())
	m.armTimer(st, policy)
	step := policy.Steps[next]
	rec := m.recorder
	snapshot := *st
	m.mu.Unlock()

	m.notifyStep(snapshot, step)
	m.publish(bus.KindEscalationAdvanced, snapshot)
	if rec != nil {
		rec(snapshot)
	}
}

// Acknowledge halts escalation for an alert and records the acknowledging
// step. Acknowledging an unknown or finished escalation is a no-op.
func (m *Manager) Acknowledge(alertID string) bool {
	m.mu.Lock()
	st, ok := m.states[alertID]
	if !ok || st.Status != StatusActive {
		m.mu.Unlock()
		return false
	}
	st.Status = StatusAcknowledged
	st.AckedAtStep = st.StepIndex
	if t, ok := m.timers[alertID]; ok {
		t.Stop()
		delete(m.timers, alertID)
	}
	snapshot := *st
	m.mu.Unlock()

	m.publish(bus.KindEscalationAcknowledged, snapshot)
	return true
}

// StateFor returns a copy of the escalation state for an alert
func (m *Manager) StateFor(alertID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[alertID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// FireDue forces an advance check for every active state whose deadline has
// passed. Lets tests drive the state machine without waiting on wall-clock
// timers.
func (m *Manager) FireDue(now time.Time) int {
	m.mu.Lock()
	type due struct {
		alertID  string
		step     int
		deadline time.Time
	}
	var pending []due
	for id, st := range m.states {
		if st.Status == StatusActive && !st.Deadline.After(now) {
			pending = append(pending, due{id, st.StepIndex, st.Deadline})
		}
	}
	m.mu.Unlock()

	for _, d := range pending {
		m.fire(d.alertID, d.step, d.deadline)
	}
	return len(pending)
}

// Stop cancels all timers. States are retained for inspection.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

// notifyStep resolves the step's roles to on-call contacts and delivers the
// escalation notification.
func (m *Manager) notifyStep(st State, step Step) {
	now := time.Now()
	var targets []string
	for _, role := range step.Roles {
		targets = append(targets, m.schedule.Resolve(role, now)...)
	}
	if len(targets) == 0 {
		log.Printf("No on-call contacts for alert %s step %d roles %v", st.AlertID, st.StepIndex, step.Roles)
		return
	}

	err := m.notifier.Deliver(notify.Notification{
		Title:    fmt.Sprintf("Escalation step %d for alert %s", st.StepIndex+1, st.AlertID),
		Body:     fmt.Sprintf("Alert %s from %s is unacknowledged (severity %s)", st.AlertID, st.Source, st.Severity),
		Severity: string(st.Severity),
		AlertID:  st.AlertID,
	}, targets)
	if err != nil {
		log.Printf("Failed to deliver escalation notification for alert %s: %v", st.AlertID, err)
	}
}

func (m *Manager) publish(kind bus.EventKind, st State) {
	if m.bus != nil {
		m.bus.Publish(kind, st)
	}
}

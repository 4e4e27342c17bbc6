package escalation

import (
	"fmt"
	"time"
)

// Step is one tier of an escalation policy: who to notify and how long to
// wait before auto-advancing if unacknowledged.
type Step struct {
	Roles       []string `json:"roles" yaml:"roles"`
	WaitMinutes int      `json:"wait_minutes" yaml:"wait_minutes"`
}

// Wait returns the step's wait duration
func (s Step) Wait() time.Duration {
	return time.Duration(s.WaitMinutes) * time.Minute
}

// Policy is an ordered list of escalation steps
type Policy struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Validate checks the policy contract at registration time
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("escalation policy requires an id")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("escalation policy %s has no steps", p.ID)
	}
	for i, step := range p.Steps {
		if len(step.Roles) == 0 {
			return fmt.Errorf("escalation policy %s step %d names no roles", p.ID, i)
		}
		if step.WaitMinutes <= 0 {
			return fmt.Errorf("escalation policy %s step %d has non-positive wait", p.ID, i)
		}
	}
	return nil
}

// Package notify defines the delivery capability the pipeline consumes.
// Channel templating and routing live with the host; the core only hands a
// notification and its targets to whatever implementation is wired in.
package notify

import "log"

// Notification is the channel-agnostic message the core emits
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity"`
	AlertID  string `json:"alert_id,omitempty"`
}

// Notifier delivers a notification to a list of targets. Implementations
// decide what a target means (Slack channel, email address, pager id).
type Notifier interface {
	Deliver(n Notification, targets []string) error
}

// LogNotifier writes notifications to the process log. Used as the fallback
// when no channel is configured, and in tests.
type LogNotifier struct{}

// Deliver logs the notification
func (LogNotifier) Deliver(n Notification, targets []string) error {
	log.Printf("Notification [%s] %s -> %v: %s", n.Severity, n.Title, targets, n.Body)
	return nil
}

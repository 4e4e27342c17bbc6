package notify

import (
	"fmt"

	"github.com/slack-go/slack"
)

// slackAPI is the subset of the Slack client the notifier uses
type slackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier delivers notifications to Slack channels. Targets are
// channel ids; an empty target list falls back to the default channel.
type SlackNotifier struct {
	client         slackAPI
	defaultChannel string
}

// NewSlackNotifier creates a Slack notifier from a bot token
func NewSlackNotifier(botToken, defaultChannel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(botToken), defaultChannel: defaultChannel}
}

// NewSlackNotifierWithClient creates a Slack notifier around an existing
// client. Used by tests to inject a fake.
func NewSlackNotifierWithClient(client slackAPI, defaultChannel string) *SlackNotifier {
	return &SlackNotifier{client: client, defaultChannel: defaultChannel}
}

// Deliver posts the notification to each target channel
func (s *SlackNotifier) Deliver(n Notification, targets []string) error {
	text := fmt.Sprintf("%s *%s*\n%s", severityEmoji(n.Severity), n.Title, n.Body)

	if len(targets) == 0 && s.defaultChannel != "" {
		targets = []string{s.defaultChannel}
	}

	var firstErr error
	for _, channel := range targets {
		_, _, err := s.client.PostMessage(
			channel,
			slack.MsgOptionText(text, false),
		)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to post to %s: %w", channel, err)
		}
	}
	return firstErr
}

// severityEmoji maps a severity onto a Slack emoji
func severityEmoji(severity string) string {
	switch severity {
	case "critical":
		return ":red_circle:"
	case "high":
		return ":large_orange_circle:"
	case "medium":
		return ":large_yellow_circle:"
	case "low":
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}

package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Slack posts alerts to a channel with a bot token
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a Slack notifier. apiURL overrides the Slack API base
// URL and may be empty.
func NewSlack(token, channel, apiURL string) *Slack {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Slack{
		client:  slack.New(token, opts...),
		channel: channel,
	}
}

// Name implements Notifier
func (s *Slack) Name() string { return "Slack" }

// Send posts message with chat.postMessage
func (s *Slack) Send(ctx context.Context, message string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("chat.postMessage to %s: %w", s.channel, err)
	}
	return nil
}

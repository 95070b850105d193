package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts settled-session events to one Slack channel.
type SlackNotifier struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a SlackNotifier.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*SlackNotifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &SlackNotifier{client: client, channelID: opts.ChannelID}, nil
}

// Send posts the event as an attachment message.
func (s *SlackNotifier) Send(ctx context.Context, ev Event) error {
	color := "#36a64f"
	if ev.Failed > 0 {
		color = "#e01e5a"
	}
	attachment := slackapi.Attachment{
		Title: ev.Headline(),
		Text:  ev.Body(),
		Color: color,
		Fields: []slackapi.AttachmentField{
			{Title: "Task", Value: ev.TaskID, Short: true},
			{Title: "Session", Value: ev.SessionID, Short: true},
		},
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("notify: slack post to %s: %w", s.channelID, err)
	}
	return nil
}

// Close is a no-op; the Slack web API client holds no connection.
func (s *SlackNotifier) Close() error { return nil }

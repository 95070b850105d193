package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session methods we use, enabling
// test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// DiscordNotifier posts settled-session events to one Discord channel. It
// uses the REST API only; no gateway connection is opened.
type DiscordNotifier struct {
	sess      discordSession
	channelID string
}

// DiscordOpts holds parameters for creating a DiscordNotifier.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a Discord notifier.
func NewDiscord(opts DiscordOpts) (*DiscordNotifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		sess = s
	}
	return &DiscordNotifier{sess: sess, channelID: opts.ChannelID}, nil
}

// Send posts the event as an embed.
func (d *DiscordNotifier) Send(ctx context.Context, ev Event) error {
	color := 0x36a64f
	if ev.Failed > 0 {
		color = 0xe01e5a
	}
	embed := &discordgo.MessageEmbed{
		Title:       ev.Headline(),
		Description: ev.Body(),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Task", Value: ev.TaskID, Inline: true},
			{Name: "Session", Value: ev.SessionID, Inline: true},
		},
	}
	_, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: discord post to %s: %w", d.channelID, err)
	}
	return nil
}

// Close releases the underlying session.
func (d *DiscordNotifier) Close() error { return d.sess.Close() }

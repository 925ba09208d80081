package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordSession is the part of the discordgo session used here.
// *discordgo.Session implements it.
type DiscordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notifications to one channel through a bot session.
// The session is used over REST only; no gateway connection is opened.
type DiscordNotifier struct {
	session   DiscordSession
	channelID string
}

// NewDiscordNotifier creates a bot session from token.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return NewDiscordNotifierWithSession(dg, channelID), nil
}

// NewDiscordNotifierWithSession wraps an existing session.
func NewDiscordNotifierWithSession(s DiscordSession, channelID string) *DiscordNotifier {
	return &DiscordNotifier{session: s, channelID: channelID}
}

func (d *DiscordNotifier) Notify(ctx context.Context, n Notification) error {
	content := fmt.Sprintf("**%s**\n%s", n.Title, n.Message)
	if _, err := d.session.ChannelMessageSend(d.channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord channel %s: %w", d.channelID, err)
	}
	return nil
}

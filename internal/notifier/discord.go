package notifier

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"keygate/internal/model"
)

// DiscordNotifier posts key lifecycle events to a Discord channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// NewDiscordNotifier creates a notifier posting to the given channel.
// Message sends go over the REST API, so the gateway connection is never
// opened.
func NewDiscordNotifier(token, channelID string, logger *slog.Logger) (*DiscordNotifier, error) {
	if channelID == "" {
		return nil, fmt.Errorf("discord channel ID is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
		logger:    logger.With("component", "notifier"),
	}, nil
}

func (n *DiscordNotifier) KeyCreated(key *model.APIKey) {
	n.send(fmt.Sprintf("🔑 API key **%s** created (limit %d)", key.Name, key.UsageLimit))
}

func (n *DiscordNotifier) KeyDeleted(id uint, name string) {
	n.send(fmt.Sprintf("🗑️ API key **%s** (#%d) deleted", name, id))
}

func (n *DiscordNotifier) LimitReached(key *model.APIKey) {
	n.send(fmt.Sprintf("🚫 API key **%s** hit its usage limit of %d", key.Name, key.UsageLimit))
}

func (n *DiscordNotifier) send(message string) {
	if _, err := n.session.ChannelMessageSend(n.channelID, message); err != nil {
		n.logger.Error("Failed to send discord message", "error", err)
	}
}

func (n *DiscordNotifier) Close() error {
	return n.session.Close()
}

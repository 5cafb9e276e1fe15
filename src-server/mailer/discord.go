package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Discord limits an embed description to 4096 characters.
const DISCORD_DESCRIPTION_LIMIT = 4096

// DiscordSender posts every message to one channel through a webhook, the
// parish office reads and forwards them from there.
type DiscordSender struct {
	session   *discordgo.Session
	webhookID string
	token     string
	from      string
}

func NewDiscordSender(webhookID, token, from string) (*DiscordSender, error) {
	// webhooks don't need a bot token
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("NewDiscordSender: %w", err)
	}
	return &DiscordSender{session: session, webhookID: webhookID, token: token, from: from}, nil
}

func (s *DiscordSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("(*DiscordSender).Send: %w", err)
	}
	if _, err := s.session.WebhookExecute(s.webhookID, s.token, false, &discordgo.WebhookParams{
		Username: s.from,
		Embeds:   []*discordgo.MessageEmbed{ToDiscordEmbed(msg)},
	}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("(*DiscordSender).Send: %w", err)
	}
	slog.Debug("mail posted to discord", "to", msg.To, "subject", msg.Subject)
	return nil
}

func ToDiscordEmbed(msg Message) *discordgo.MessageEmbed {
	body := []rune(msg.Body)
	if len(body) > DISCORD_DESCRIPTION_LIMIT {
		body = append(body[:DISCORD_DESCRIPTION_LIMIT-1], '…')
	}
	embed := &discordgo.MessageEmbed{
		Title:       msg.Subject,
		Description: string(body),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "To",
				Value:  msg.To,
				Inline: true,
			},
		},
	}
	if msg.URL != "" {
		embed.URL = msg.URL
	}
	return embed
}

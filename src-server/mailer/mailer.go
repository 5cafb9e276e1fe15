// Package mailer delivers the few transactional messages the app sends:
// password resets and new ticket notifications.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"parish/src-server/utils"
)

type Message struct {
	To      string
	Subject string
	Body    string
	// optional link shown under the body
	URL string
}

func (m Message) Validate() error {
	switch {
	case !strings.Contains(m.To, "@"):
		return fmt.Errorf("recipient %q is not an e-mail address", m.To)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("subject is empty")
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender only logs, used when no delivery channel is configured.
type LogSender struct {
	From string
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("(*LogSender).Send: %w", err)
	}
	slog.Info("mail",
		"from", s.From,
		"to", msg.To,
		"subject", msg.Subject,
		"url", msg.URL,
	)
	slog.Debug("mail body", "body", msg.Body)
	return nil
}

// FromConfig picks the Discord webhook when both its id and token are set.
func FromConfig(config *utils.Config) Sender {
	id, token := config.GetDiscordWebhookID(), config.GetDiscordWebhookToken()
	if id == "" || token == "" {
		slog.Warn("DISCORD_WEBHOOK_ID/DISCORD_WEBHOOK_TOKEN not set, mails are only logged")
		return &LogSender{From: config.GetMailFrom()}
	}
	sender, err := NewDiscordSender(id, token, config.GetMailFrom())
	if err != nil {
		slog.Error("can't create discord sender, mails are only logged", "error", err)
		return &LogSender{From: config.GetMailFrom()}
	}
	return sender
}

package mailer_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"parish/src-server/mailer"
)

func TestValidate(t *testing.T) {
	if err := (mailer.Message{To: "farar@example.com", Subject: "Hi"}).Validate(); err != nil {
		t.Error(err)
	}
	if err := (mailer.Message{To: "nobody", Subject: "Hi"}).Validate(); err == nil {
		t.Error("bad recipient accepted")
	}
	if err := (mailer.Message{To: "farar@example.com", Subject: " "}).Validate(); err == nil {
		t.Error("empty subject accepted")
	}

	sender := &mailer.LogSender{From: "noreply@localhost"}
	if err := sender.Send(context.Background(), mailer.Message{To: "nobody"}); err == nil {
		t.Error("LogSender sent an invalid message")
	}
}

func TestToDiscordEmbed(t *testing.T) {
	embed := mailer.ToDiscordEmbed(mailer.Message{
		To:      "farar@example.com",
		Subject: "Nový požadavek",
		Body:    strings.Repeat("ž", mailer.DISCORD_DESCRIPTION_LIMIT+10),
		URL:     "https://farnost.example/tickets/3",
	})
	if embed.Title != "Nový požadavek" || embed.URL != "https://farnost.example/tickets/3" {
		t.Errorf("unexpected embed %+v", embed)
	}
	if n := utf8.RuneCountInString(embed.Description); n != mailer.DISCORD_DESCRIPTION_LIMIT {
		t.Error("description not cut to the limit", n)
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Value != "farar@example.com" {
		t.Error("recipient field missing")
	}
}

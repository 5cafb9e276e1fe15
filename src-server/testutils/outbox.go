package testutils

import (
	"context"
	"sync"

	"parish/src-server/mailer"
)

// Outbox is a mailer.Sender keeping every message in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []mailer.Message
	// returned by Send when set, nothing is kept then
	Err error
}

func (o *Outbox) Send(ctx context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	o.messages = append(o.messages, msg)
	return nil
}

func (o *Outbox) Messages() []mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mailer.Message(nil), o.messages...)
}

package notifier

import (
	"context"
	"log"
)

// Notifier delivers a text message to the user.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log. It is used when no chat is
// configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, text string) error {
	log.Printf("[INFO] notification:\n%s", text)
	return nil
}

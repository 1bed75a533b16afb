package notifier

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

// CommandHandler is called when a user command is received. An empty reply
// sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// PollRetryDelay is the pause after a failed poll.
var PollRetryDelay = 5 * time.Second

// pollTimeout is the long-poll wait Telegram holds a getUpdates call open.
const pollTimeout = 30

const failedReply = "Command failed, see the daemon log."

// StartPolling long-polls getUpdates and answers each text message through
// handler. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	client := &http.Client{Timeout: (pollTimeout + 5) * time.Second, Transport: t.httpClient().Transport}

	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[WARN] polling failed: %v", err)
			sleepCtx(ctx, PollRetryDelay)
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || strings.TrimSpace(u.Message.Text) == "" {
				continue
			}
			t.answer(ctx, handler, strings.TrimSpace(u.Message.Text))
		}
	}
	log.Println("[INFO] Telegram polling stopped")
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"message"},
	}
	var updates []telegramUpdate
	if err := t.call(ctx, client, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// answer runs one command. A panicking handler is logged and answered with
// a failure notice so the loop keeps serving.
func (t *TelegramNotifier) answer(ctx context.Context, handler CommandHandler, text string) {
	log.Printf("[INFO] received command: %s", text)
	reply := func() (reply string) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[ERROR] command %q panicked: %v", text, r)
				reply = failedReply
			}
		}()
		return handler(ctx, text)
	}()
	if reply == "" {
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		log.Printf("[ERROR] send reply: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

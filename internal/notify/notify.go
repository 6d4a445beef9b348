// Package notify sends operational messages to a Telegram chat and bridges
// the process log into it: everything at warning level or above is
// forwarded.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	apiBase = "https://api.telegram.org"

	// Probe retries at startup: the bot refuses to run half-deaf.
	probeAttempts = 5
	probeWait     = 3 * time.Second
)

// Notifier posts messages through the Telegram Bot API.
type Notifier struct {
	client *resty.Client
	token  string
	chatID int64
}

// New returns a notifier for the given bot token and target chat.
func New(token string, chatID int64) *Notifier {
	client := resty.New().
		SetBaseURL(apiBase).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)
	return &Notifier{client: client, token: token, chatID: chatID}
}

// Configured reports whether a token and chat are set; an unconfigured
// notifier drops everything silently.
func (n *Notifier) Configured() bool {
	return n != nil && n.token != "" && n.chatID != 0
}

// Probe verifies the token against getMe, retrying a few times so a slow
// network at boot does not abort startup.
func (n *Notifier) Probe(ctx context.Context) error {
	if !n.Configured() {
		return nil
	}
	var lastErr error
	for attempt := 0; attempt < probeAttempts; attempt++ {
		resp, err := n.client.R().SetContext(ctx).
			Get(fmt.Sprintf("/bot%s/getMe", n.token))
		if err == nil && resp.IsSuccess() {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("getMe returned %s", resp.Status())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probeWait):
		}
	}
	return fmt.Errorf("notifier unreachable after %d attempts: %w", probeAttempts, lastErr)
}

// Send posts one message to the configured chat.
func (n *Notifier) Send(text string) error {
	if !n.Configured() {
		return nil
	}
	resp, err := n.client.R().
		SetFormData(map[string]string{
			"chat_id": fmt.Sprint(n.chatID),
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", n.token))
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("sendMessage returned %s", resp.Status())
	}
	return nil
}

// Heartbeat announces the bot is up.
func (n *Notifier) Heartbeat() {
	if !n.Configured() {
		return
	}
	_ = n.Send(fmt.Sprintf("teletrader up at %s", time.Now().Format("2006-01-02 15:04:05")))
}

// Hook forwards log entries at warning level and above to the notifier.
// Delivery is fire and forget on a goroutine so logging never blocks on the
// network.
type Hook struct {
	notifier *Notifier
}

// NewHook returns a logrus hook over the notifier.
func NewHook(n *Notifier) *Hook {
	return &Hook{notifier: n}
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

// Fire implements logrus.Hook.
func (h *Hook) Fire(entry *logrus.Entry) error {
	if !h.notifier.Configured() {
		return nil
	}
	line, err := entry.String()
	if err != nil {
		return err
	}
	go func() { _ = h.notifier.Send(line) }()
	return nil
}

// Package notify delivers operator notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/web3-frozen/unlock-emissions/internal/metrics"
)

// discordLimit is Discord's maximum message length.
const discordLimit = 2000

// Notifier sends a plain-text message to an operator channel.
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// Log writes messages to the logger. It is the fallback when no channel is
// configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log { return &Log{logger: logger} }

func (l *Log) Send(_ context.Context, msg string) error {
	l.logger.Warn("notification", "message", msg)
	return nil
}

// Discord posts messages to a Discord webhook.
type Discord struct {
	client  *http.Client
	webhook string
}

func NewDiscord(webhook string) *Discord {
	return &Discord{
		client:  &http.Client{Timeout: 15 * time.Second},
		webhook: webhook,
	}
}

func (d *Discord) Send(ctx context.Context, msg string) error {
	body, _ := json.Marshal(map[string]string{"content": Truncate(msg, discordLimit)})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("discord", "error").Inc()
		return fmt.Errorf("send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.NotificationsTotal.WithLabelValues("discord", "error").Inc()
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}
	metrics.NotificationsTotal.WithLabelValues("discord", "ok").Inc()
	return nil
}

// Truncate shortens msg to at most limit characters, ending it with "..."
// when cut. Limits count runes, as the chat APIs do.
func Truncate(msg string, limit int) string {
	if utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	r := []rune(msg)
	return string(r[:limit-3]) + "..."
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

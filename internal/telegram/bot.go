package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/web3-frozen/unlock-emissions/internal/metrics"
	"github.com/web3-frozen/unlock-emissions/internal/notify"
)

const telegramAPI = "https://api.telegram.org/bot"

// telegramLimit is the Bot API's maximum message length.
const telegramLimit = 4096

type Bot struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewBot(token string) *Bot {
	return &Bot{
		token:   token,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessage sends a text message to a Telegram chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    notify.Truncate(text, telegramLimit),
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+b.token+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("telegram", "error").Inc()
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		metrics.NotificationsTotal.WithLabelValues("telegram", "error").Inc()
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, errResp.Description)
	}
	metrics.NotificationsTotal.WithLabelValues("telegram", "ok").Inc()
	return nil
}

// Notifier delivers notifications to a single chat.
type Notifier struct {
	bot    *Bot
	chatID int64
}

func NewNotifier(bot *Bot, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

func (n *Notifier) Send(ctx context.Context, msg string) error {
	return n.bot.SendMessage(ctx, n.chatID, msg)
}

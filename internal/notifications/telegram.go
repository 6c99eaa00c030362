package notifications

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// telegramAPI is the production bot API base; tests point apiBase at a
// local server instead.
const telegramAPI = "https://api.telegram.org"

var levelBadge = map[string]string{
	LevelInfo:    "ℹ️",
	LevelWarning: "⚠️",
	LevelError:   "🚨",
	LevelSuccess: "✅",
}

// TelegramNotifier delivers alerts to one chat via the Telegram bot API.
type TelegramNotifier struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SendAlert posts one formatted message. Delivery failures come back as
// errors; the engine logs them and never blocks a cycle on delivery.
func (t *TelegramNotifier) SendAlert(level, message string) error {
	badge, ok := levelBadge[level]
	if !ok {
		badge = levelBadge[LevelInfo]
	}

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", fmt.Sprintf("%s *Risk Engine*\n\n%s", badge, message))
	form.Set("parse_mode", "Markdown")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	resp, err := t.client.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

package updater

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"banking/internal/logging"
	"banking/internal/models"
)

// Notifier delivers short operator messages: access code requests and update
// failures.
type Notifier interface {
	Notify(message string) error
}

// LogNotifier writes notifications to the log. Used when no delivery channel
// is configured.
type LogNotifier struct {
	Log logging.Logger
}

func (n LogNotifier) Notify(message string) error {
	n.Log.Info("Notification", logging.Field{Key: "message", Value: message})
	return nil
}

// TelegramNotifier delivers notifications through the Telegram bot API.
type TelegramNotifier struct {
	config models.NotificationsConfig
	client *http.Client
	base   string
}

// NewTelegramNotifier builds a notifier for the configured bot and chat.
func NewTelegramNotifier(config models.NotificationsConfig) *TelegramNotifier {
	return &TelegramNotifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		base:   "https://api.telegram.org",
	}
}

func (n *TelegramNotifier) Notify(message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.base, n.config.TelegramAPIKey)
	resp, err := n.client.PostForm(endpoint, url.Values{
		"chat_id": {n.config.TelegramChatID},
		"text":    {message},
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

// NewNotifier picks the Telegram notifier when credentials are configured
// and falls back to logging otherwise.
func NewNotifier(config models.NotificationsConfig, log logging.Logger) Notifier {
	if config.TelegramAPIKey != "" && config.TelegramChatID != "" {
		return NewTelegramNotifier(config)
	}
	return LogNotifier{Log: log}
}

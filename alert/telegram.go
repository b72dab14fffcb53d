package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bankgw/webhook-gateway/config"
)

/* Notifier raises operational alerts for failures a human should hear about:
 * refresh failures, rejected callbacks, unparseable payloads. Implementations
 * must never block or fail the caller.
 */
type Notifier interface {
	Error(message string, requestID string)
}

// Noop discards all alerts. Used when alerting is not configured and in tests.
type Noop struct{}

func (Noop) Error(string, string) {}

// Telegram posts alerts to a Telegram bot chat.
type Telegram struct {
	client *http.Client
	cfg    config.TelegramConfig
}

// NewTelegram creates a Telegram notifier from config. Returns a Noop
// notifier when alerting is disabled or missing its endpoint.
func NewTelegram(cfg config.TelegramConfig) Notifier {
	if !cfg.Enabled || cfg.APIURL == "" {
		return Noop{}
	}
	return &Telegram{
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
	}
}

// Error sends the alert on a background goroutine. Delivery problems are
// logged, never surfaced to the caller.
func (t *Telegram) Error(message string, requestID string) {
	text := fmt.Sprintf("%s %s", t.cfg.MessagePrefix, message)
	if requestID != "" {
		text = fmt.Sprintf("%s [request-id: %s] %s", t.cfg.MessagePrefix, requestID, message)
	}

	body, err := json.Marshal(map[string]interface{}{
		"chat_id":           t.cfg.ChatID,
		"message_thread_id": t.cfg.MessageThreadID,
		"text":              text,
	})
	if err != nil {
		log.Error().Err(err).Msg("building telegram alert payload")
		return
	}

	go func() {
		resp, err := t.client.Post(t.cfg.APIURL, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Error().Err(err).Msg("sending telegram alert")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Error().Int("status", resp.StatusCode).Msg("telegram alert rejected")
			return
		}
		log.Debug().Str("text", text).Msg("telegram alert sent")
	}()
}

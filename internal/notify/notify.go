// Package notify delivers human-facing trade notifications. Delivery is
// best effort: a failed notification is logged and dropped, never allowed to
// affect trading.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/derekmborges/algorithmic-trading/internal/logger"
)

// Notifier sends a plain-text message to an external channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NopNotifier discards all messages.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, string) error { return nil }

// WebhookNotifier posts messages as JSON to a webhook URL, in the payload
// shape Discord and compatible services accept.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(url string, log *logger.Logger) *WebhookNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log,
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Notify implements Notifier. Failures are logged and swallowed.
func (w *WebhookNotifier) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("failed to build notification request", zap.Error(err))

		return nil
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("failed to deliver notification", zap.Error(err))

		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn("notification rejected by webhook", zap.Int("status", resp.StatusCode))
	}

	return nil
}

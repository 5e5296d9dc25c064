// Package notify provides the built-in notification channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dagrun/dagrun/pkg/protocol"
)

const webhookTimeout = 10 * time.Second

// Dispatcher routes notifications by channel: "webhook" posts a JSON payload
// to the target URL, "log" writes to the service log.
type Dispatcher struct {
	logger *slog.Logger
	client *http.Client
}

func NewDispatcher(logger *slog.Logger, client *http.Client) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}

	return &Dispatcher{logger: logger, client: client}
}

func (d *Dispatcher) Send(ctx context.Context, n protocol.Notification) error {
	switch n.Channel {
	case "webhook":
		return d.sendWebhook(ctx, n)
	case "log", "":
		d.logger.Info("notification",
			"subject", n.Subject, "message", n.Message)

		return nil
	default:
		return fmt.Errorf("unknown notification channel %q", n.Channel)
	}
}

func (d *Dispatcher) sendWebhook(ctx context.Context, n protocol.Notification) error {
	if n.Target == "" {
		return fmt.Errorf("webhook notification requires a target URL")
	}

	payload, err := json.Marshal(map[string]string{
		"subject": n.Subject,
		"message": n.Message,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	return nil
}

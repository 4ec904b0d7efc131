// Package webhook delivers notifications as JSON POSTs to a
// configured endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

var _ driven.Notifier = (*Notifier)(nil)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 10 * time.Second

// Config holds webhook notifier configuration.
type Config struct {
	// URL is the endpoint notifications are posted to (required).
	URL string

	// Timeout is the per-delivery timeout (default: 10s).
	Timeout time.Duration
}

// Notifier posts notifications to a webhook endpoint.
type Notifier struct {
	client *http.Client
	url    string
}

// payload is the wire shape of one notification.
type payload struct {
	Agent    string `json:"agent"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity,omitempty"`
	SentAt   string `json:"sent_at"`
}

// NewNotifier creates a webhook notifier.
func NewNotifier(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Notifier{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.URL,
	}, nil
}

// Notify sends one notification. A non-2xx response is an error.
func (n *Notifier) Notify(ctx context.Context, notification driven.Notification) error {
	body, err := json.Marshal(payload{
		Agent:    notification.Agent,
		Title:    notification.Title,
		Body:     notification.Body,
		Severity: notification.Severity,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

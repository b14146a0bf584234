// Package notify posts short operator messages to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// DefaultTimeout bounds a single webhook POST.
const DefaultTimeout = 10 * time.Second

// Sink receives notification messages.
type Sink interface {
	Post(ctx context.Context, message string) error
}

// New returns a webhook sink for url, or a no-op sink when url is empty.
func New(url string) Sink {
	if url == "" {
		return Nop{}
	}
	return NewWebhook(url)
}

// Send posts message to s and logs, rather than returns, any failure.
func Send(ctx context.Context, s Sink, message string) {
	if s == nil {
		return
	}
	if err := s.Post(ctx, message); err != nil {
		output.Warn("notification failed", "err", err)
	}
}

// Nop discards every message.
type Nop struct{}

// Post implements Sink.
func (Nop) Post(context.Context, string) error { return nil }

// Webhook posts {"text": message} as JSON to an incoming-webhook URL.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook sink with DefaultTimeout.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Post implements Sink.
func (w *Webhook) Post(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Text: message})
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrConnectivity, fmt.Sprintf("posting notification: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	output.Debug("notification sent", "status", resp.StatusCode)
	return nil
}

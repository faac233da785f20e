// Package slack posts operator alerts to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/streamgate/pkg/retry"
)

var ErrEmptyMessage = errors.New("slack_empty_message")

type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}

type webhookPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// Webhook posts to an incoming webhook URL. Slack ignores the channel for
// webhooks bound to a single channel.
type Webhook struct {
	url    string
	client *http.Client
	policy retry.Policy
}

func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Webhook{
		url:    strings.TrimSpace(url),
		client: client,
		policy: retry.Policy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second},
	}
}

func (w *Webhook) PostMessage(ctx context.Context, channelID string, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	body, err := json.Marshal(webhookPayload{Channel: strings.TrimSpace(channelID), Text: message})
	if err != nil {
		return err
	}

	_, err = retry.Do(ctx, w.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.post(ctx, body)
	})
	return err
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("slack webhook: status %d", resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("slack webhook: status %d", resp.StatusCode))
	}
}

package pollop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/y1hao/pollphase"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits for a single webhook target
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
	defaultWebhookTimeout      = 10 * time.Second
)

// WebhookPayload is the JSON body posted by [Webhook.Operation].
type WebhookPayload struct {
	Items []string  `json:"items"`
	At    time.Time `json:"at"`
}

// Webhook posts every tick's items as JSON to an HTTP endpoint.
//
// Timeouts are applied per request via the context, not as a global client
// timeout. A non-2xx response fails the tick.
type Webhook struct {
	url        string
	headers    map[string]string
	timeout    time.Duration
	httpClient *http.Client
}

// NewWebhook creates a [Webhook] posting to url. A non-positive timeout
// defaults to 10s. Headers are sent with every request.
func NewWebhook(url string, headers map[string]string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return &Webhook{
		url:     url,
		headers: h,
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Operation returns the poll operation that posts to the webhook.
func (w *Webhook) Operation() pollphase.PollOperation {
	return w.post
}

func (w *Webhook) post(ctx context.Context, items []string) error {
	if items == nil {
		items = []string{}
	}
	body, err := json.Marshal(WebhookPayload{Items: items, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.headers {
		req.Header.Set(key, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close closes all idle connections. Safe to call multiple times; the
// webhook remains usable afterwards.
func (w *Webhook) Close() error {
	if w == nil || w.httpClient == nil {
		return nil
	}
	if transport, ok := w.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

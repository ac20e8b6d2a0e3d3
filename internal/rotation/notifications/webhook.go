package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebhookConfig holds configuration for generic HTTP webhook notifications.
type WebhookConfig struct {
	// Name is a human-readable name for this webhook.
	Name string

	// URL is the webhook endpoint URL.
	URL string

	// Method is the HTTP method to use (default: POST).
	Method string

	// Headers are additional HTTP headers to include.
	Headers map[string]string

	// Events limits delivery to these levels. Empty means all.
	Events []string

	// MaxAttempts bounds delivery retries (default: 3).
	MaxAttempts int

	// InitialWait is the first retry backoff; it doubles per attempt.
	InitialWait time.Duration

	// Timeout for each HTTP request.
	Timeout time.Duration
}

// WebhookProvider sends rotation notifications via HTTP webhooks, retrying
// with exponential backoff.
type WebhookProvider struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookProvider creates a new webhook notification provider.
func NewWebhookProvider(config WebhookConfig) *WebhookProvider {
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.InitialWait == 0 {
		config.InitialWait = 1 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &WebhookProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (p *WebhookProvider) Name() string {
	if p.config.Name != "" {
		return "webhook:" + p.config.Name
	}
	return "webhook"
}

func (p *WebhookProvider) SupportsLevel(level Level) bool {
	return supportsLevel(p.config.Events, level)
}

// Validate checks if the provider configuration is valid.
func (p *WebhookProvider) Validate(_ context.Context) error {
	if p.config.URL == "" {
		return fmt.Errorf("URL is required")
	}

	parsed, err := url.Parse(p.config.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", p.config.URL)
	}

	switch strings.ToUpper(p.config.Method) {
	case http.MethodPost, http.MethodPut:
	default:
		return fmt.Errorf("invalid method: %s (must be POST or PUT)", p.config.Method)
	}
	return validateEvents(p.config.Events)
}

// Send delivers the event, retrying transient failures.
func (p *WebhookProvider) Send(ctx context.Context, event Event) error {
	payload, err := p.buildPayload(event)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	var lastErr error
	wait := p.config.InitialWait
	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if lastErr = p.doSend(ctx, payload); lastErr == nil {
			return nil
		}

		if attempt < p.config.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", p.config.MaxAttempts, lastErr)
}

func (p *WebhookProvider) doSend(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(p.config.Method), p.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range p.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *WebhookProvider) buildPayload(event Event) ([]byte, error) {
	payload := map[string]interface{}{
		"level":       string(event.Level),
		"message":     event.Message,
		"rotation_id": event.RotationID,
		"secret_type": event.SecretType,
		"status":      event.Status,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
	}
	if event.Err != nil {
		payload["error"] = event.Err.Error()
	}
	return json.Marshal(payload)
}

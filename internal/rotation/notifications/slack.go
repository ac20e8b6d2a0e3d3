package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SlackConfig holds configuration for Slack webhook notifications.
type SlackConfig struct {
	// WebhookURL is the Slack incoming webhook URL.
	WebhookURL string

	// Events limits delivery to these levels. Empty means all.
	Events []string
}

// SlackProvider sends rotation notifications to Slack via webhooks.
type SlackProvider struct {
	config SlackConfig
	client *http.Client
}

// NewSlackProvider creates a new Slack notification provider.
func NewSlackProvider(config SlackConfig) *SlackProvider {
	return &SlackProvider{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *SlackProvider) Name() string {
	return "slack"
}

func (p *SlackProvider) SupportsLevel(level Level) bool {
	return supportsLevel(p.config.Events, level)
}

// Validate checks if the provider configuration is valid.
func (p *SlackProvider) Validate(_ context.Context) error {
	if p.config.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}

	parsed, err := url.Parse(p.config.WebhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid webhook URL: %s", p.config.WebhookURL)
	}
	return validateEvents(p.config.Events)
}

// Send posts a Block Kit message for the event.
func (p *SlackProvider) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(p.buildMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *SlackProvider) buildMessage(event Event) map[string]interface{} {
	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type":  "plain_text",
				"text":  fmt.Sprintf("%s %s", levelEmoji(event.Level), event.Message),
				"emoji": true,
			},
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Secret:*\n%s", event.SecretType)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Status:*\n%s", event.Status)},
			},
		},
	}

	if event.Err != nil {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf(":warning: *Error:*\n```%s```", event.Err.Error()),
			},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]interface{}{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("rotation %s | %s", event.RotationID,
					event.Timestamp.Format(time.RFC3339)),
			},
		},
	})

	return map[string]interface{}{"blocks": blocks}
}

func levelEmoji(level Level) string {
	switch level {
	case LevelInfo:
		return ":white_check_mark:"
	case LevelWarning:
		return ":warning:"
	case LevelCritical:
		return ":x:"
	default:
		return ":bell:"
	}
}

package notifications

import (
	"context"
	"fmt"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
)

// NewManagerFromConfig builds a manager with every configured channel
// registered and validated.
func NewManagerFromConfig(cfg config.NotificationsConfig, logger *logging.Logger) (*Manager, error) {
	manager := NewManager(DefaultQueueSize, logger)

	if cfg.Slack != nil {
		provider := NewSlackProvider(SlackConfig{
			WebhookURL: cfg.Slack.WebhookURL,
			Events:     cfg.Slack.Events,
		})
		if err := provider.Validate(context.Background()); err != nil {
			return nil, fmt.Errorf("slack notifications: %w", err)
		}
		manager.RegisterProvider(provider)
	}

	for _, hook := range cfg.Webhooks {
		provider := NewWebhookProvider(WebhookConfig{
			Name:    hook.Name,
			URL:     hook.URL,
			Method:  hook.Method,
			Headers: hook.Headers,
		})
		if err := provider.Validate(context.Background()); err != nil {
			return nil, fmt.Errorf("webhook %s: %w", hook.Name, err)
		}
		manager.RegisterProvider(provider)
	}

	if cfg.Email != nil {
		provider := NewEmailProvider(EmailConfig{
			SMTP: SMTPConfig{
				Host:     cfg.Email.SMTP.Host,
				Port:     cfg.Email.SMTP.Port,
				Username: cfg.Email.SMTP.Username,
				Password: cfg.Email.SMTP.Password,
				TLS:      cfg.Email.SMTP.TLS,
			},
			From: cfg.Email.From,
			To:   cfg.Email.To,
		})
		if err := provider.Validate(context.Background()); err != nil {
			return nil, fmt.Errorf("email notifications: %w", err)
		}
		manager.RegisterProvider(provider)
	}

	return manager, nil
}

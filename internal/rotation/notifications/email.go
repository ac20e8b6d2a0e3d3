package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host string
	Port int

	// Username and Password for SMTP authentication (optional).
	Username string
	Password string

	// TLS enables STARTTLS on the connection.
	TLS bool
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	SMTP SMTPConfig

	// From is the sender address.
	From string

	// To lists recipient addresses.
	To []string

	// Events limits delivery to these levels. Empty means all.
	Events []string
}

// SMTPSendFunc is the function signature for sending mail; tests inject a
// fake.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailProvider sends rotation notifications via SMTP.
type EmailProvider struct {
	config     EmailConfig
	smtpSender SMTPSendFunc
}

// NewEmailProvider creates a new email notification provider.
func NewEmailProvider(config EmailConfig) *EmailProvider {
	return &EmailProvider{
		config:     config,
		smtpSender: smtp.SendMail,
	}
}

func (p *EmailProvider) Name() string {
	return "email"
}

func (p *EmailProvider) SupportsLevel(level Level) bool {
	return supportsLevel(p.config.Events, level)
}

// Validate checks if the provider configuration is valid.
func (p *EmailProvider) Validate(_ context.Context) error {
	if p.config.SMTP.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if p.config.SMTP.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if p.config.From == "" {
		return fmt.Errorf("from address is required")
	}
	if len(p.config.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	return validateEvents(p.config.Events)
}

// Send delivers the event as a plain-text email.
func (p *EmailProvider) Send(_ context.Context, event Event) error {
	addr := fmt.Sprintf("%s:%d", p.config.SMTP.Host, p.config.SMTP.Port)

	var auth smtp.Auth
	if p.config.SMTP.Username != "" {
		auth = smtp.PlainAuth("", p.config.SMTP.Username, p.config.SMTP.Password, p.config.SMTP.Host)
	}

	if err := p.smtpSender(addr, auth, p.config.From, p.config.To, p.buildMessage(event)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (p *EmailProvider) buildMessage(event Event) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", p.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(p.config.To, ", "))
	fmt.Fprintf(&b, "Subject: [rotor] %s: %s rotation %s\r\n", event.Level, event.SecretType, event.Status)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "%s\r\n\r\n", event.Message)
	fmt.Fprintf(&b, "Secret type: %s\r\n", event.SecretType)
	fmt.Fprintf(&b, "Status:      %s\r\n", event.Status)
	fmt.Fprintf(&b, "Rotation ID: %s\r\n", event.RotationID)
	fmt.Fprintf(&b, "Time:        %s\r\n", event.Timestamp.Format(time.RFC3339))
	if event.Err != nil {
		fmt.Fprintf(&b, "Error:       %s\r\n", event.Err.Error())
	}
	return []byte(b.String())
}

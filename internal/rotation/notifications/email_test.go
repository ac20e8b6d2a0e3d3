package notifications

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmailProvider() *EmailProvider {
	return NewEmailProvider(EmailConfig{
		SMTP: SMTPConfig{Host: "smtp.internal", Port: 587, Username: "rotor", Password: "secret"},
		From: "rotor@example.com",
		To:   []string{"oncall@example.com"},
	})
}

func TestEmailProviderSend(t *testing.T) {
	t.Parallel()

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	provider := newTestEmailProvider()
	provider.smtpSender = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := provider.Send(context.Background(), Event{
		Level:      LevelCritical,
		Message:    "Rotation requires manual intervention",
		RotationID: "rot-13",
		SecretType: "database",
		Status:     "FAILED_UNRECOVERABLE",
		Err:        errors.New("dependent system unreachable"),
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.internal:587", gotAddr)
	assert.Equal(t, "rotor@example.com", gotFrom)
	assert.Equal(t, []string{"oncall@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: [rotor] CRITICAL: database rotation FAILED_UNRECOVERABLE")
	assert.Contains(t, msg, "rot-13")
	assert.Contains(t, msg, "dependent system unreachable")
}

func TestEmailProviderSendFailure(t *testing.T) {
	t.Parallel()

	provider := newTestEmailProvider()
	provider.smtpSender = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	assert.Error(t, provider.Send(context.Background(), Event{Level: LevelInfo}))
}

func TestEmailProviderValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, newTestEmailProvider().Validate(context.Background()))
	assert.Error(t, NewEmailProvider(EmailConfig{}).Validate(context.Background()))
	assert.Error(t, NewEmailProvider(EmailConfig{
		SMTP: SMTPConfig{Host: "smtp.internal", Port: 587},
		From: "rotor@example.com",
	}).Validate(context.Background()))
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackProviderSend(t *testing.T) {
	t.Parallel()

	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewSlackProvider(SlackConfig{WebhookURL: server.URL})
	err := provider.Send(context.Background(), Event{
		Level:      LevelCritical,
		Message:    "Rotation rolled back",
		RotationID: "rot-42",
		SecretType: "database",
		Status:     "ROLLED_BACK",
		Err:        errors.New("probe never succeeded"),
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)

	var message map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &message))
	blocks, ok := message["blocks"].([]interface{})
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(blocks), 3)

	payload := string(body)
	assert.Contains(t, payload, "database")
	assert.Contains(t, payload, "ROLLED_BACK")
	assert.Contains(t, payload, "probe never succeeded")
	assert.Contains(t, payload, "rot-42")
}

func TestSlackProviderSendErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	provider := NewSlackProvider(SlackConfig{WebhookURL: server.URL})
	assert.Error(t, provider.Send(context.Background(), Event{Level: LevelInfo}))
}

func TestSlackProviderValidate(t *testing.T) {
	t.Parallel()

	assert.Error(t, NewSlackProvider(SlackConfig{}).Validate(context.Background()))
	assert.Error(t, NewSlackProvider(SlackConfig{WebhookURL: "not a url"}).Validate(context.Background()))
	assert.NoError(t, NewSlackProvider(SlackConfig{
		WebhookURL: "https://hooks.slack.com/services/T00/B00/xyz",
	}).Validate(context.Background()))

	// A misspelled event level would silently filter everything out.
	err := NewSlackProvider(SlackConfig{
		WebhookURL: "https://hooks.slack.com/services/T00/B00/xyz",
		Events:     []string{"FATAL"},
	}).Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event level")

	assert.NoError(t, NewSlackProvider(SlackConfig{
		WebhookURL: "https://hooks.slack.com/services/T00/B00/xyz",
		Events:     []string{"warning", "CRITICAL"},
	}).Validate(context.Background()))
}

func TestSlackProviderLevelFilter(t *testing.T) {
	t.Parallel()

	provider := NewSlackProvider(SlackConfig{
		WebhookURL: "https://hooks.slack.com/services/T00/B00/xyz",
		Events:     []string{"WARNING", "CRITICAL"},
	})
	assert.False(t, provider.SupportsLevel(LevelInfo))
	assert.True(t, provider.SupportsLevel(LevelWarning))
	assert.True(t, provider.SupportsLevel(LevelCritical))

	all := NewSlackProvider(SlackConfig{WebhookURL: "https://hooks.slack.com/x"})
	assert.True(t, all.SupportsLevel(LevelInfo))
}

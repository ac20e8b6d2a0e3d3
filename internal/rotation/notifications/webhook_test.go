package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookProviderSend(t *testing.T) {
	t.Parallel()

	var body []byte
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		header = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{
		Name:    "audit",
		URL:     server.URL,
		Headers: map[string]string{"X-Auth-Token": "token123"},
	})

	err := provider.Send(context.Background(), Event{
		Level:      LevelInfo,
		Message:    "Rotation completed",
		RotationID: "rot-7",
		SecretType: "jwt",
		Status:     "COMPLETED",
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, "token123", header.Get("X-Auth-Token"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "INFO", payload["level"])
	assert.Equal(t, "rot-7", payload["rotation_id"])
	assert.Equal(t, "jwt", payload["secret_type"])
	assert.Equal(t, "COMPLETED", payload["status"])
}

func TestWebhookProviderRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{
		URL:         server.URL,
		InitialWait: time.Millisecond,
	})

	require.NoError(t, provider.Send(context.Background(), Event{Level: LevelInfo}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookProviderGivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewWebhookProvider(WebhookConfig{
		URL:         server.URL,
		MaxAttempts: 2,
		InitialWait: time.Millisecond,
	})

	assert.Error(t, provider.Send(context.Background(), Event{Level: LevelInfo}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWebhookProviderValidate(t *testing.T) {
	t.Parallel()

	assert.Error(t, NewWebhookProvider(WebhookConfig{}).Validate(context.Background()))
	assert.Error(t, NewWebhookProvider(WebhookConfig{URL: "https://x.example", Method: "DELETE"}).Validate(context.Background()))
	assert.Error(t, NewWebhookProvider(WebhookConfig{URL: "https://x.example", Events: []string{"NOTICE"}}).Validate(context.Background()))
	assert.NoError(t, NewWebhookProvider(WebhookConfig{URL: "https://x.example"}).Validate(context.Background()))
	assert.NoError(t, NewWebhookProvider(WebhookConfig{URL: "https://x.example", Events: []string{"info"}}).Validate(context.Background()))
}

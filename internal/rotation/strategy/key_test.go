package strategy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
)

func TestKeyStrategyGenerate(t *testing.T) {
	t.Parallel()

	s := NewKeyStrategy("jwt", config.SecretConfig{}, logging.New(false, true))
	buf, err := s.Generate(context.Background())
	require.NoError(t, err)
	defer buf.Destroy()

	value, err := buf.String()
	require.NoError(t, err)
	assert.Len(t, value, 64)
}

func TestKeyStrategyVerify(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	s := NewKeyStrategy("jwt", config.SecretConfig{HealthURL: healthy.URL}, logging.New(false, true))
	assert.NoError(t, s.Verify(context.Background(), nil))
}

func TestKeyStrategyVerifyUnhealthy(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	s := NewKeyStrategy("session", config.SecretConfig{HealthURL: broken.URL}, logging.New(false, true))
	assert.Error(t, s.Verify(context.Background(), nil))
}

func TestKeyStrategyVerifyNoURL(t *testing.T) {
	t.Parallel()

	s := NewKeyStrategy("jwt", config.SecretConfig{}, logging.New(false, true))
	assert.Error(t, s.Verify(context.Background(), nil))
}

func TestKeyStrategyApplyAndRollbackAreNoops(t *testing.T) {
	t.Parallel()

	s := NewKeyStrategy("jwt", config.SecretConfig{}, logging.New(false, true))
	assert.NoError(t, s.Apply(context.Background(), nil, nil))
	assert.NoError(t, s.Rollback(context.Background(), nil, nil))
}

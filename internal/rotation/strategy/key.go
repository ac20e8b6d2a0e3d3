package strategy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/secure"
)

// signingKeyBytes gives a 64-character hex key.
const signingKeyBytes = 32

// KeyStrategy rotates opaque signing material (JWT signing keys, session
// secrets). The dependent service reads the key from the backend on reload,
// so apply itself touches nothing; verification probes the service's health
// endpoint after the reload.
type KeyStrategy struct {
	name      string
	healthURL string
	logger    *logging.Logger
	client    *http.Client
}

// NewKeyStrategy creates a strategy for one signing-material secret type.
func NewKeyStrategy(name string, cfg config.SecretConfig, logger *logging.Logger) *KeyStrategy {
	return &KeyStrategy{
		name:      name,
		healthURL: cfg.HealthURL,
		logger:    logger,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *KeyStrategy) Name() string {
	return s.name
}

func (s *KeyStrategy) Generate(_ context.Context) (*secure.Buffer, error) {
	return GenerateHexKey(signingKeyBytes)
}

// Apply is a no-op: the backend write and consumer reload are the whole
// cutover for key material.
func (s *KeyStrategy) Apply(_ context.Context, _, _ *secure.Buffer) error {
	return nil
}

// Verify checks that the dependent service came back healthy with the new
// key loaded.
func (s *KeyStrategy) Verify(ctx context.Context, _ *secure.Buffer) error {
	if s.healthURL == "" {
		return fmt.Errorf("no health_url configured for %s", s.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		return fmt.Errorf("bad health url: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Rollback has no server-side mutation to undo.
func (s *KeyStrategy) Rollback(_ context.Context, _, _ *secure.Buffer) error {
	return nil
}

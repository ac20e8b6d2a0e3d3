package strategy

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/secrets"
	"github.com/credstack/rotor/internal/secure"
)

// apiKeyBytes gives a 64-character hex key.
const apiKeyBytes = 32

// APIKeyStrategy rotates an internally issued API key. Consumers read the
// key from the backend, so apply is a no-op and the functional probe is
// retrievability: the backend must serve back exactly the value written.
type APIKeyStrategy struct {
	store  secrets.Store
	path   string
	logger *logging.Logger
}

// NewAPIKeyStrategy creates a strategy for the configured key.
func NewAPIKeyStrategy(store secrets.Store, cfg config.SecretConfig, logger *logging.Logger) *APIKeyStrategy {
	return &APIKeyStrategy{
		store:  store,
		path:   cfg.Path,
		logger: logger,
	}
}

func (s *APIKeyStrategy) Name() string {
	return "api-key"
}

func (s *APIKeyStrategy) Generate(_ context.Context) (*secure.Buffer, error) {
	return GenerateHexKey(apiKeyBytes)
}

// Apply has nothing to mutate; the backend write is the rotation.
func (s *APIKeyStrategy) Apply(_ context.Context, _, _ *secure.Buffer) error {
	return nil
}

// Verify fetches the key back from the backend and compares it with what
// was written.
func (s *APIKeyStrategy) Verify(ctx context.Context, value *secure.Buffer) error {
	stored, _, err := s.store.Get(ctx, s.path)
	if err != nil {
		return fmt.Errorf("failed to read back api key: %w", err)
	}
	defer stored.Destroy()

	return value.With(func(want []byte) error {
		return stored.With(func(got []byte) error {
			if subtle.ConstantTimeCompare(want, got) != 1 {
				return fmt.Errorf("backend returned a different api key value")
			}
			return nil
		})
	})
}

// Rollback has no server-side mutation to undo.
func (s *APIKeyStrategy) Rollback(_ context.Context, _, _ *secure.Buffer) error {
	return nil
}

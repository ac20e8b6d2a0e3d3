package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/zalando/go-keyring"

	"github.com/credstack/rotor/internal/secure"
)

// keyringUser is the account name under which the Vault token is stored in
// the OS keyring.
const keyringUser = "vault-token"

// logicalAPI is the subset of the Vault logical client used by the store.
// Satisfied by *api.Logical; mocked in tests.
type logicalAPI interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*api.Secret, error)
}

// VaultConfig holds connection settings for the Vault backend.
type VaultConfig struct {
	// Address of the Vault server. Falls back to VAULT_ADDR.
	Address string

	// Mount is the KV v2 mount point, e.g. "secret".
	Mount string

	// TokenKeyringService, when set, names the OS keyring service to read
	// the Vault token from if VAULT_TOKEN is not in the environment.
	TokenKeyringService string
}

// VaultStore implements Store against a Vault KV v2 mount.
type VaultStore struct {
	logical logicalAPI
	mount   string
}

// NewVaultClient builds an authenticated Vault client, resolving the token
// from the environment or, failing that, the OS keyring.
func NewVaultClient(cfg VaultConfig) (*api.Client, error) {
	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if os.Getenv(api.EnvVaultToken) == "" && cfg.TokenKeyringService != "" {
		token, err := keyring.Get(cfg.TokenKeyringService, keyringUser)
		if err != nil {
			return nil, fmt.Errorf("vault token not in environment and keyring lookup failed: %w", err)
		}
		client.SetToken(token)
	}

	return client, nil
}

// NewVaultStore builds a store from config.
func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	client, err := NewVaultClient(cfg)
	if err != nil {
		return nil, err
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}

	return &VaultStore{logical: client.Logical(), mount: mount}, nil
}

// newVaultStoreWithLogical is used by tests to inject a fake logical client.
func newVaultStoreWithLogical(logical logicalAPI, mount string) *VaultStore {
	return &VaultStore{logical: logical, mount: mount}
}

// Get reads the current version from the KV v2 data endpoint.
func (s *VaultStore) Get(ctx context.Context, secretPath string) (*secure.Buffer, Version, error) {
	secret, err := s.logical.ReadWithContext(ctx, s.dataPath(secretPath))
	if err != nil {
		return nil, Version{}, fmt.Errorf("vault read %s: %w", secretPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, Version{}, fmt.Errorf("vault read %s: %w", secretPath, ErrNotFound)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, Version{}, fmt.Errorf("vault read %s: %w", secretPath, ErrNotFound)
	}
	value, ok := data["value"].(string)
	if !ok {
		return nil, Version{}, fmt.Errorf("vault secret %s has no value field", secretPath)
	}

	return secure.NewBufferFromString(value), versionFromMetadata(secret.Data["metadata"]), nil
}

// Put writes a new version through the KV v2 data endpoint and returns the
// version number Vault assigned.
func (s *VaultStore) Put(ctx context.Context, secretPath string, value *secure.Buffer, description string) (Version, error) {
	var payload map[string]interface{}
	err := value.With(func(raw []byte) error {
		payload = map[string]interface{}{
			"data": map[string]interface{}{
				"value":       string(raw),
				"description": description,
			},
		}
		return nil
	})
	if err != nil {
		return Version{}, err
	}

	secret, err := s.logical.WriteWithContext(ctx, s.dataPath(secretPath), payload)
	if err != nil {
		return Version{}, fmt.Errorf("vault write %s: %w", secretPath, err)
	}

	if secret != nil && secret.Data != nil {
		return versionFromMetadata(secret.Data), nil
	}
	return Version{Ref: "unknown", CreatedAt: time.Now().UTC()}, nil
}

func (s *VaultStore) dataPath(secretPath string) string {
	return path.Join(s.mount, "data", secretPath)
}

// versionFromMetadata extracts the KV v2 version number and creation time.
func versionFromMetadata(raw interface{}) Version {
	v := Version{Ref: "unknown", CreatedAt: time.Now().UTC()}

	meta, ok := raw.(map[string]interface{})
	if !ok {
		return v
	}
	if num, ok := meta["version"].(json.Number); ok {
		v.Ref = num.String()
	}
	if created, ok := meta["created_time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			v.CreatedAt = t
		}
	}
	return v
}

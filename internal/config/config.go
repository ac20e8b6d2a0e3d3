// Package config loads and validates rotor.yaml.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	roterrors "github.com/credstack/rotor/internal/errors"
	"github.com/credstack/rotor/internal/logging"
)

// Config holds the runtime configuration and shared dependencies handed to
// every command.
type Config struct {
	Path       string
	Logger     *logging.Logger
	DryRun     bool
	Definition *Definition
}

// Definition represents the rotor.yaml structure.
type Definition struct {
	Version        int                     `yaml:"version" json:"version"`
	Backend        BackendConfig           `yaml:"backend" json:"backend"`
	Ledger         LedgerConfig            `yaml:"ledger" json:"ledger"`
	Secrets        map[string]SecretConfig `yaml:"secrets" json:"secrets"`
	Reload         ReloadConfig            `yaml:"reload,omitempty" json:"reload,omitempty"`
	RotateAll      RotateAllConfig         `yaml:"rotate_all,omitempty" json:"rotate_all,omitempty"`
	Preflight      PreflightConfig         `yaml:"preflight,omitempty" json:"preflight,omitempty"`
	Notifications  NotificationsConfig     `yaml:"notifications,omitempty" json:"notifications,omitempty"`
	RollbackWindow Duration                `yaml:"rollback_window,omitempty" json:"rollback_window,omitempty"`
}

// BackendConfig selects and configures the secret backend.
type BackendConfig struct {
	Type  string             `yaml:"type" json:"type"`
	Vault VaultBackendConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
	AWS   AWSBackendConfig   `yaml:"aws,omitempty" json:"aws,omitempty"`
}

// VaultBackendConfig holds Vault connection settings.
type VaultBackendConfig struct {
	Address             string `yaml:"address,omitempty" json:"address,omitempty"`
	Mount               string `yaml:"mount,omitempty" json:"mount,omitempty"`
	TokenKeyringService string `yaml:"token_keyring_service,omitempty" json:"token_keyring_service,omitempty"`
}

// AWSBackendConfig holds AWS Secrets Manager settings.
type AWSBackendConfig struct {
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// LedgerConfig selects where rotation records live.
type LedgerConfig struct {
	Dir     string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`
}

// SecretConfig configures one rotatable secret type.
type SecretConfig struct {
	Path      string `yaml:"path" json:"path"`
	HealthURL string `yaml:"health_url,omitempty" json:"health_url,omitempty"`

	// Database only.
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	User   string `yaml:"user,omitempty" json:"user,omitempty"`

	// Redis only.
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`

	MaxAttempts int      `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	Backoff     Duration `yaml:"backoff,omitempty" json:"backoff,omitempty"`
}

// ReloadConfig names the command run after the backend and dependent system
// are updated, so other consumers pick up the new value.
type ReloadConfig struct {
	Command []string `yaml:"command,omitempty" json:"command,omitempty"`
}

// RotateAllConfig tunes the serialized rotate-all run.
type RotateAllConfig struct {
	Cooldown Duration `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

// PreflightConfig tunes the environment checks run before any mutation.
type PreflightConfig struct {
	DiskPath      string           `yaml:"disk_path,omitempty" json:"disk_path,omitempty"`
	DiskLimitPct  float64          `yaml:"disk_limit_pct,omitempty" json:"disk_limit_pct,omitempty"`
	MemoryWarnPct float64          `yaml:"memory_warn_pct,omitempty" json:"memory_warn_pct,omitempty"`
	Liveness      []LivenessTarget `yaml:"liveness,omitempty" json:"liveness,omitempty"`
}

// LivenessTarget is an HTTP endpoint checked during preflight.
type LivenessTarget struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// NotificationsConfig configures delivery channels for rotation events.
type NotificationsConfig struct {
	Slack    *SlackConfig    `yaml:"slack,omitempty" json:"slack,omitempty"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
	Email    *EmailConfig    `yaml:"email,omitempty" json:"email,omitempty"`
}

// SlackConfig configures the Slack webhook channel.
type SlackConfig struct {
	WebhookURL string   `yaml:"webhook_url" json:"webhook_url"`
	Events     []string `yaml:"events,omitempty" json:"events,omitempty"`
}

// WebhookConfig configures a generic HTTP webhook channel.
type WebhookConfig struct {
	Name    string            `yaml:"name" json:"name"`
	URL     string            `yaml:"url" json:"url"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	SMTP SMTPConfig `yaml:"smtp" json:"smtp"`
	From string     `yaml:"from" json:"from"`
	To   []string   `yaml:"to" json:"to"`
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	TLS      bool   `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// Duration wraps time.Duration so yaml and json round-trip the "30s" form.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Built-in retry policies applied when a secret omits max_attempts/backoff.
var defaultRetries = map[string]struct {
	attempts int
	backoff  time.Duration
}{
	"jwt":      {30, 10 * time.Second},
	"session":  {30, 10 * time.Second},
	"database": {30, 15 * time.Second},
	"redis":    {30, 10 * time.Second},
	"apikey":   {5, 2 * time.Second},
}

// Load reads, parses, and validates the rotor.yaml file, then fills in
// defaults.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return &roterrors.ConfigError{
				Field:      "path",
				Message:    fmt.Sprintf("configuration file not found: %s", c.Path),
				Suggestion: "Create a rotor.yaml or point --config at one",
			}
		}
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return &roterrors.ConfigError{
			Message:    fmt.Sprintf("invalid YAML syntax: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if err := validateDefinition(&def); err != nil {
		return err
	}

	def.applyDefaults()
	c.Definition = &def
	return nil
}

// validateDefinition checks the parsed document against the embedded JSON
// schema and a few cross-field rules the schema cannot express.
func validateDefinition(def *Definition) error {
	if def.Version != 1 {
		return &roterrors.ConfigError{
			Field:      "version",
			Message:    fmt.Sprintf("unsupported configuration version %d", def.Version),
			Suggestion: "Set 'version: 1' at the top of rotor.yaml",
		}
	}

	doc, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return &roterrors.ConfigError{
			Field:      first.Field(),
			Message:    first.Description(),
			Suggestion: "Compare rotor.yaml against the documented schema",
		}
	}

	if def.Backend.Type == "vault" && def.Ledger.Backend == "vault" && def.Backend.Vault.Mount == "" {
		return &roterrors.ConfigError{
			Field:      "backend.vault.mount",
			Message:    "vault ledger requires a KV v2 mount",
			Suggestion: "Set backend.vault.mount (e.g. 'secret')",
		}
	}
	for name, secret := range def.Secrets {
		if secret.Path == "" {
			return &roterrors.ConfigError{
				Field:      fmt.Sprintf("secrets.%s.path", name),
				Message:    "every secret needs a backend path",
				Suggestion: "Set the path the value is stored under",
			}
		}
	}
	return nil
}

func (d *Definition) applyDefaults() {
	if d.Ledger.Backend == "" {
		d.Ledger.Backend = "file"
	}
	if d.Ledger.Dir == "" {
		d.Ledger.Dir = defaultLedgerDir()
	}
	if d.RotateAll.Cooldown == 0 {
		d.RotateAll.Cooldown = Duration(300 * time.Second)
	}
	if d.RollbackWindow == 0 {
		d.RollbackWindow = Duration(30 * time.Minute)
	}
	if d.Preflight.DiskPath == "" {
		d.Preflight.DiskPath = "/"
	}
	if d.Preflight.DiskLimitPct == 0 {
		d.Preflight.DiskLimitPct = 85
	}
	if d.Preflight.MemoryWarnPct == 0 {
		d.Preflight.MemoryWarnPct = 90
	}

	for name, secret := range d.Secrets {
		fallback, ok := defaultRetries[name]
		if !ok {
			continue
		}
		if secret.MaxAttempts == 0 {
			secret.MaxAttempts = fallback.attempts
		}
		if secret.Backoff == 0 {
			secret.Backoff = Duration(fallback.backoff)
		}
		d.Secrets[name] = secret
	}
}

// GetSecret returns the configuration for one secret type.
func (d *Definition) GetSecret(name string) (SecretConfig, error) {
	secret, ok := d.Secrets[name]
	if !ok {
		return SecretConfig{}, &roterrors.ConfigError{
			Field:      "secrets",
			Message:    fmt.Sprintf("secret type %q is not configured", name),
			Suggestion: fmt.Sprintf("Add a 'secrets.%s' entry to rotor.yaml", name),
		}
	}
	return secret, nil
}

// defaultLedgerDir resolves the XDG data directory for rotation records.
func defaultLedgerDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "rotor", "ledger")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "rotor", "ledger")
	}
	return filepath.Join(home, ".local", "share", "rotor", "ledger")
}

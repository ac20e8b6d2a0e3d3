// Package commands wires the CLI surface to the rotation coordinator.
package commands

import (
	"context"
	"fmt"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/reload"
	"github.com/credstack/rotor/internal/rotation"
	"github.com/credstack/rotor/internal/rotation/ledger"
	"github.com/credstack/rotor/internal/rotation/notifications"
	"github.com/credstack/rotor/internal/rotation/preflight"
	"github.com/credstack/rotor/internal/rotation/rollback"
	"github.com/credstack/rotor/internal/rotation/strategy"
	"github.com/credstack/rotor/internal/secrets"
)

// buildCoordinator loads the configuration and assembles the full rotation
// stack. The returned manager is already started; callers must Stop it so
// queued notifications drain before exit.
func buildCoordinator(ctx context.Context, cfg *config.Config) (*rotation.Coordinator, *notifications.Manager, error) {
	if err := cfg.Load(); err != nil {
		return nil, nil, err
	}
	def := cfg.Definition

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	ldgr, err := buildLedger(cfg)
	if err != nil {
		return nil, nil, err
	}

	registry, err := strategy.NewRegistryFromConfig(def, store, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}

	var reloader reload.Reloader = reload.NopReloader{}
	if len(def.Reload.Command) > 0 {
		reloader = reload.NewExecReloader(def.Reload.Command, cfg.Logger)
	}

	manager, err := notifications.NewManagerFromConfig(def.Notifications, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	manager.Start(ctx)

	coordinator := rotation.NewCoordinator(
		def,
		store,
		ldgr,
		registry,
		preflight.NewChecker(def.Preflight, cfg.Logger),
		reloader,
		rollback.NewController(store, reloader, cfg.Logger),
		manager,
		cfg.Logger,
	)
	return coordinator, manager, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (secrets.Store, error) {
	backend := cfg.Definition.Backend
	switch backend.Type {
	case "vault":
		return secrets.NewVaultStore(secrets.VaultConfig{
			Address:             backend.Vault.Address,
			Mount:               backend.Vault.Mount,
			TokenKeyringService: backend.Vault.TokenKeyringService,
		})
	case "aws":
		return secrets.NewAWSStore(ctx, secrets.AWSConfig{
			Region: backend.AWS.Region,
			Prefix: backend.AWS.Prefix,
		})
	case "memory":
		return secrets.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", backend.Type)
	}
}

func buildLedger(cfg *config.Config) (rotation.Ledger, error) {
	def := cfg.Definition
	switch def.Ledger.Backend {
	case "vault":
		client, err := secrets.NewVaultClient(secrets.VaultConfig{
			Address:             def.Backend.Vault.Address,
			Mount:               def.Backend.Vault.Mount,
			TokenKeyringService: def.Backend.Vault.TokenKeyringService,
		})
		if err != nil {
			return nil, err
		}
		return ledger.NewVaultLedger(client, def.Backend.Vault.Mount), nil
	case "file", "":
		return ledger.NewFileLedger(def.Ledger.Dir), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", def.Ledger.Backend)
	}
}

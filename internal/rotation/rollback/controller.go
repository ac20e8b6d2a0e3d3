// Package rollback restores the previous credential after a failed
// rotation.
package rollback

import (
	"context"
	"fmt"

	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/reload"
	"github.com/credstack/rotor/internal/rotation/strategy"
	"github.com/credstack/rotor/internal/secrets"
	"github.com/credstack/rotor/internal/secure"
)

// Controller drives the restore sequence: re-store the old value, undo the
// dependent-system mutation, reload consumers, and verify once. It retries
// nothing; a failed rollback is terminal and handed to an operator.
type Controller struct {
	store    secrets.Store
	reloader reload.Reloader
	logger   *logging.Logger
}

// NewController creates a rollback controller.
func NewController(store secrets.Store, reloader reload.Reloader, logger *logging.Logger) *Controller {
	return &Controller{
		store:    store,
		reloader: reloader,
		logger:   logger,
	}
}

// Rollback restores old as the live credential. failed is the value the
// rotation could not verify; strategies use it to authenticate the undo
// where the dependent mutation already landed. A nil return means the old
// credential is live and verified again.
func (c *Controller) Rollback(ctx context.Context, secretType, path string, strat strategy.Strategy, old, failed *secure.Buffer) error {
	if old == nil {
		return fmt.Errorf("no previous value to restore for %s", secretType)
	}

	c.logger.Step("Rolling back %s to previous value", secretType)

	if _, err := c.store.Put(ctx, path, old, "(rollback)"); err != nil {
		return fmt.Errorf("failed to re-store previous value: %w", err)
	}

	if err := strat.Rollback(ctx, old, failed); err != nil {
		return fmt.Errorf("failed to undo dependent mutation: %w", err)
	}

	if err := c.reloader.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload consumers after restore: %w", err)
	}

	// One verification pass, no retry loop. Past this point remediation is
	// manual.
	if err := strat.Verify(ctx, old); err != nil {
		return fmt.Errorf("restored value failed verification: %w", err)
	}

	c.logger.Info("Rollback of %s verified", secretType)
	return nil
}

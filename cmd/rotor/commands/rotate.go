package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/rotation"
)

// NewRotateCommand creates a rotate-<type> command for one secret type.
func NewRotateCommand(cfg *config.Config, secretType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-" + secretType,
		Short: short,
		Long: short + `.

The rotation generates a new value, writes it to the secret backend,
applies it to the dependent system, reloads consumers, and verifies the
new value before declaring success. On verification failure the previous
value is restored. The command exits non-zero unless the rotation
completed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, manager, err := buildCoordinator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer manager.Stop()

			if cfg.DryRun {
				return coordinator.DryRun(cmd.Context(), secretType)
			}

			outcome := coordinator.Rotate(cmd.Context(), secretType)
			if outcome.Err != nil {
				return outcome.Err
			}
			if outcome.Status != rotation.StatusCompleted {
				return fmt.Errorf("rotation %s ended %s", outcome.RotationID, outcome.Status)
			}
			return nil
		},
	}
}

// NewRotateAllCommand creates the rotate-all command.
func NewRotateAllCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-all",
		Short: "Rotate every configured secret, one at a time",
		Long: `Rotate every configured secret type in sequence, waiting out the
configured cooldown between rotations so dependent systems settle. A
failed rotation is rolled back and the run continues with the next type.
The command exits non-zero if any rotation did not complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, manager, err := buildCoordinator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer manager.Stop()

			if cfg.DryRun {
				for name := range cfg.Definition.Secrets {
					if err := coordinator.DryRun(cmd.Context(), name); err != nil {
						return err
					}
				}
				return nil
			}

			outcomes := coordinator.RotateAll(cmd.Context(), nil)
			var failed int
			for _, outcome := range outcomes {
				if outcome.Err != nil || outcome.Status != rotation.StatusCompleted {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rotations did not complete", failed, len(outcomes))
			}
			cfg.Logger.Info("All %d rotations completed", len(outcomes))
			return nil
		},
	}
}

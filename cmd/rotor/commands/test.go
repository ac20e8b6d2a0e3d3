package commands

import (
	"github.com/spf13/cobra"

	"github.com/credstack/rotor/internal/config"
)

// NewTestCommand creates the test command, which probes a secret's current
// value without rotating it.
func NewTestCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "test <secret-type>",
		Short: "Verify the currently stored value of a secret",
		Long: `Run a single verification probe against the value currently stored in
the backend. Useful for confirming connectivity and credentials before a
real rotation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, manager, err := buildCoordinator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer manager.Stop()

			if err := coordinator.Probe(cmd.Context(), args[0]); err != nil {
				return err
			}
			cfg.Logger.Info("Current %s value verified", args[0])
			return nil
		},
	}
}

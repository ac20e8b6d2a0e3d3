package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/rotation/preflight"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and environment readiness",
		Long: `Validate the configuration file, check that the ledger directory is
writable, and run the preflight environment checks. Exits non-zero when
a rotation started now would refuse to run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			def := cfg.Definition
			cfg.Logger.Info("Configuration valid: %d secret type(s), %s backend", len(def.Secrets), def.Backend.Type)

			if def.Ledger.Backend == "file" {
				if err := checkLedgerDir(def.Ledger.Dir); err != nil {
					cfg.Logger.Error("Ledger directory: %v", err)
					return err
				}
				cfg.Logger.Info("Ledger directory writable: %s", def.Ledger.Dir)
			}

			checker := preflight.NewChecker(def.Preflight, cfg.Logger)
			results, err := checker.Run(cmd.Context())
			for _, result := range results {
				switch result.Outcome {
				case preflight.OutcomeOK:
					cfg.Logger.Info("%s: %s", result.Check, result.Detail)
				case preflight.OutcomeWarn:
					cfg.Logger.Warn("%s: %s", result.Check, result.Detail)
				case preflight.OutcomeFail:
					cfg.Logger.Error("%s: %s", result.Check, result.Detail)
				}
			}
			if err != nil {
				return err
			}

			cfg.Logger.Info("Environment ready for rotation")
			return nil
		},
	}
}

func checkLedgerDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("cannot write to %s: %w", dir, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

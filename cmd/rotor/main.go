package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/credstack/rotor/cmd/rotor/commands"
	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
		dryRun     bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "rotor",
		Short: "Credential rotation orchestrator",
		Long: `rotor rotates credentials through a verified state machine: generate a
new value, write it to the secret backend, apply it to the dependent
system, reload consumers, and verify before declaring success. Failed
rotations are rolled back to the previous value.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.DryRun = dryRun
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "rotor.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Run preflight and generation without changing anything")

	rootCmd.AddCommand(
		commands.NewRotateCommand(cfg, "jwt", "Rotate the JWT signing key"),
		commands.NewRotateCommand(cfg, "session", "Rotate the session encryption key"),
		commands.NewRotateCommand(cfg, "database", "Rotate the database password"),
		commands.NewRotateCommand(cfg, "redis", "Rotate the Redis password"),
		commands.NewRotateCommand(cfg, "apikey", "Rotate the service API key"),
		commands.NewRotateAllCommand(cfg),
		commands.NewStatusCommand(cfg),
		commands.NewTestCommand(cfg),
		commands.NewDoctorCommand(cfg),
	)

	return rootCmd.Execute()
}

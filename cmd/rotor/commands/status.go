package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/rotation"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(cfg *config.Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [secret-type]",
		Short: "Show the most recent rotation of each secret",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, manager, err := buildCoordinator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer manager.Stop()

			var records []rotation.Record
			if len(args) > 0 {
				rec, err := coordinator.Status(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, rotation.ErrNoRecord) {
						fmt.Printf("%s has never been rotated\n", args[0])
						return nil
					}
					return err
				}
				records = []rotation.Record{*rec}
			} else {
				records, err = coordinator.StatusAll(cmd.Context())
				if err != nil {
					return err
				}
			}

			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(records)
			}
			return printStatusTable(records)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printStatusTable(records []rotation.Record) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "SECRET\tSTATUS\tROTATION\tSTARTED\tENDED\tERROR")
	for _, rec := range records {
		ended := "-"
		if !rec.EndTime.IsZero() {
			ended = rec.EndTime.Format(time.RFC3339)
		}
		lastError := "-"
		if rec.LastError != "" {
			lastError = rec.LastError
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.SecretType,
			rec.Status,
			rec.RotationID,
			rec.StartTime.Format(time.RFC3339),
			ended,
			lastError,
		)
	}
	return nil
}

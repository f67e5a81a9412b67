package cli

import (
	"errors"
	"fmt"

	"github.com/ImShyMike/hcb/internal/engine"
	"github.com/spf13/cobra"
)

// NewNukeCommand creates the nuke command.
func NewNukeCommand(opts *Options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Delete all imported and derived transactions",
		Long: `Delete all raw, hashed, canonical and pending transactions together with
their mappings, fees, anomalies and checkpoints. Events and the subsystem
entities are kept. Run a sweep afterwards to rebuild everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.engine().Nuke(yes)
			if errors.Is(err, engine.ErrNukeNotConfirmed) {
				return fmt.Errorf("%w, pass --yes", err)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "all transactions have been deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all transactions")

	return cmd
}

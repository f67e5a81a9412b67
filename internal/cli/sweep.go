package cli

import (
	"github.com/ImShyMike/hcb/internal/types"
	"github.com/spf13/cobra"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(opts *Options) *cobra.Command {
	var from types.Day

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile all transactions since a date",
		Long: `Run all stages after the import over everything dated since --from, in
windows of SWEEP_WINDOW_DAYS days. An interrupted sweep continues after the
last finished window when it is started again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := opts.engine().Sweep(cmd.Context(), from.Time())
			for _, r := range reports {
				printReport(cmd.OutOrStdout(), r)
			}
			return err
		},
	}

	cmd.Flags().Var(&from, "from", "first day of the sweep, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

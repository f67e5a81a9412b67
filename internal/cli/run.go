package cli

import (
	"fmt"

	"github.com/ImShyMike/hcb/internal/types"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *Options) *cobra.Command {
	var startDate types.Day

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the nightly pipeline once",
		Long: `Import everything dated since the start date from all configured feeds
and the subsystems, then run all stages over the start date until now.

Example:
  hcb run
  hcb run --start-date 2024-03-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := startDate.Or(opts.now().Add(-opts.Config.Lookback()))
			report, err := opts.engine().Nightly(cmd.Context(), start)
			printReport(cmd.OutOrStdout(), report)
			if err != nil {
				return err
			}

			if failed := len(report.FailedImports()); failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrImportsFailed, failed, len(report.Imports))
			}
			return nil
		},
	}

	cmd.Flags().Var(&startDate, "start-date", "first day to import, YYYY-MM-DD (default: LOOKBACK_DAYS ago)")

	return cmd
}

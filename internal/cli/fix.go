package cli

import (
	"github.com/ImShyMike/hcb/internal/types"
	"github.com/spf13/cobra"
)

// NewFixCommand creates the fix command.
func NewFixCommand(opts *Options) *cobra.Command {
	var from types.Day

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Re-derive memos and retry unmapped transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.engine().Fix(cmd.Context(), from.Or(opts.now().Add(-opts.Config.Lookback())))
			if err != nil {
				return err
			}

			printFixes(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Var(&from, "from", "first day to fix, YYYY-MM-DD (default: LOOKBACK_DAYS ago)")

	return cmd
}

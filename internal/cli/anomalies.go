package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/spf13/cobra"
)

// NewAnomaliesCommand creates the anomalies command and its resolve subcommand.
func NewAnomaliesCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List unresolved anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			anomalies, err := anomaly.Open(opts.DB)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(anomalies) == 0 {
				fmt.Fprintln(w, "no unresolved anomalies")
				return nil
			}

			for _, a := range anomalies {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.CreatedAt.Format(time.RFC3339), a.Kind, a.Subject, a.Detail)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark an anomaly as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 0)
			if err != nil {
				return fmt.Errorf("invalid anomaly id %q", args[0])
			}

			if err := anomaly.Resolve(opts.DB, uint(id)); err != nil {
				return fmt.Errorf("anomaly %d: %w", id, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "anomaly %d resolved\n", id)
			return nil
		},
	})

	return cmd
}

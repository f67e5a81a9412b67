package cli

import (
	"fmt"

	"github.com/ImShyMike/hcb/internal/models"
	"github.com/spf13/cobra"
)

// NewTransitionCommand creates the transition command.
func NewTransitionCommand(opts *Options) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "transition <type:id> <event>",
		Short: "Move an entity to its next state",
		Long: `Fire a lifecycle event on an invoice, donation, ach_transfer, check,
disbursement, bank_fee or g_suite. Declined states are picked up as declined
pending transactions by the next run.

Example:
  hcb transition ach_transfer:55 mark_rejected --comment "Returned by the bank"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := models.ParseEntityRef(args[0])
			if err != nil {
				return err
			}

			if _, err := models.TransitionEntity(opts.DB, ref, args[1], comment); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ref, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "comment to attach to the entity")

	return cmd
}

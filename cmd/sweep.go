package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache and session entries once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.store.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		posted, _ := a.ledger.Count(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries. Ledger holds %d posted titles.\n", n, posted)
		return nil
	},
}

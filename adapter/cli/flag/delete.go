package flag

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [name]",
	Short:   "Delete a flag",
	Long:    `Delete a flag. Deleting a flag that does not exist succeeds.`,
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}

		if err := a.Administrator.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete flag: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Flag deleted: %s\n", args[0])
		return nil
	},
}

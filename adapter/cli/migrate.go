package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply flag store schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Migrate == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		applied, err := a.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		for _, file := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", file)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

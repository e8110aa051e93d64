package flag

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

var getCmd = &cobra.Command{
	Use:   "get [name]",
	Short: "Show a flag definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}

		def, err := a.Administrator.Get(cmd.Context(), args[0])
		if errors.Is(err, domain.ErrFlagNotFound) {
			return fmt.Errorf("flag %q not found", args[0])
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), def)
		}
		printDefinition(cmd.OutOrStdout(), def)
		return nil
	},
}

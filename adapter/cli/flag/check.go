package flag

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkSubject string

var checkCmd = &cobra.Command{
	Use:   "check [name]",
	Short: "Evaluate a flag for a subject",
	Long: `Evaluate a flag the same way the API does, through the decision cache.

Examples:
  flagwise flag check beta-search --subject u1
  flagwise flag check maintenance-banner`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}

		d := a.Evaluator.Evaluate(cmd.Context(), args[0], checkSubject)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), d)
		}

		state := "disabled"
		if d.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", d.Name, state, d.Reason)
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkSubject, "subject", "s", "", "subject identifier")
}

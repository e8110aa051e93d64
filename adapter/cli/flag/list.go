package flag

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List flags",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}

		defs, err := a.Administrator.ListAll(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if defs == nil {
				defs = []*domain.FlagDefinition{}
			}
			return printJSON(out, defs)
		}
		if len(defs) == 0 {
			fmt.Fprintln(out, "No flags defined.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENABLED\tPERCENT\tALLOW-LIST\tDESCRIPTION")
		for _, def := range defs {
			fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%s\n",
				def.Name, def.Enabled, def.Percentage, len(def.SubjectAllowList), def.Description)
		}
		return w.Flush()
	},
}

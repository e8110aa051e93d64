package flag

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

var (
	setEnabled     bool
	setPercentage  int
	setAllowList   []string
	setDescription string
)

var setCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or update a flag",
	Long: `Create a flag or merge changes into an existing one. Options that are not
passed keep their stored value; a new flag starts disabled at 0%.

Examples:
  flagwise flag set beta-search --enabled --allow u1,u2
  flagwise flag set beta-search --percentage 25
  flagwise flag set beta-search --enabled=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}

		var opts domain.UpsertOptions
		if cmd.Flags().Changed("enabled") {
			opts = opts.WithEnabled(setEnabled)
		}
		if cmd.Flags().Changed("percentage") {
			opts = opts.WithPercentage(setPercentage)
		}
		if cmd.Flags().Changed("allow") {
			opts = opts.WithAllowList(setAllowList...)
		}
		if cmd.Flags().Changed("description") {
			opts = opts.WithDescription(setDescription)
		}

		def, err := a.Administrator.Upsert(cmd.Context(), args[0], opts)
		if err != nil {
			return fmt.Errorf("failed to set flag: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), def)
		}
		printDefinition(cmd.OutOrStdout(), def)
		return nil
	},
}

func init() {
	setCmd.Flags().BoolVarP(&setEnabled, "enabled", "e", false, "global kill-switch")
	setCmd.Flags().IntVarP(&setPercentage, "percentage", "p", 0, "rollout percentage (clamped to 0-100)")
	setCmd.Flags().StringSliceVar(&setAllowList, "allow", nil, "subjects that always get the feature (replaces the list)")
	setCmd.Flags().StringVarP(&setDescription, "description", "d", "", "free-form description")
}

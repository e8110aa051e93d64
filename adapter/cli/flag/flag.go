package flag

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/flagwise/adapter/cli"
	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

// Cmd is the flag command group
var Cmd = &cobra.Command{
	Use:   "flag",
	Short: "Manage feature flags",
	Long:  `Create, inspect, delete, and evaluate feature flags.`,
}

var jsonOutput bool

func init() {
	Cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(checkCmd)
}

func requireApp() (*cli.App, error) {
	a := cli.GetApp()
	if a == nil || a.Administrator == nil || a.Evaluator == nil {
		return nil, fmt.Errorf("application not initialized - database connection required")
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDefinition(w io.Writer, def *domain.FlagDefinition) {
	fmt.Fprintf(w, "%s\n", def.Name)
	fmt.Fprintf(w, "  enabled:    %t\n", def.Enabled)
	fmt.Fprintf(w, "  percentage: %d\n", def.Percentage)
	if len(def.SubjectAllowList) > 0 {
		fmt.Fprintf(w, "  allow-list: %s\n", strings.Join(def.SubjectAllowList, ", "))
	}
	if def.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", def.Description)
	}
	if !def.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  updated:    %s\n", def.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

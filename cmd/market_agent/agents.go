package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/market-research/internal/agents"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the four pipeline personas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, err := cfg.Catalog()
		if err != nil {
			return err
		}
		return printAgents(cmd.OutOrStdout(), catalog)
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

// printAgents writes one row per stage: step, name, result key, temperature and
// the first line of the instruction.
func printAgents(w io.Writer, catalog *agents.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STEP\tAGENT\tOUTPUT\tTEMP\tINSTRUCTION")
	for _, stage := range agents.Stages() {
		profile, err := catalog.Profile(stage)
		if err != nil {
			return err
		}
		first, _, _ := strings.Cut(strings.TrimSpace(profile.Instruction), "\n")
		_, _ = fmt.Fprintf(tw, "%d/%d\t%s\t%s\t%.1f\t%s\n",
			int(stage)+1, agents.NumStages, profile.Name, stage.Key(), profile.Temperature, first)
	}
	return tw.Flush()
}

package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyzers"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
)

// NewAnalyzersCommand lists the built-in analyzers in run order.
func NewAnalyzersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyzers",
		Short: "List built-in analyzers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := analyzers.Builtin(analyzers.BuiltinOptions{FCX: true})
			if err != nil {
				return err
			}

			tbl := table.NewWriter()
			tbl.SetOutputMirror(cmd.OutOrStdout())
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Name", "Priority", "Parallel", "Description"})

			for _, d := range registry.All() {
				tbl.AppendRow(table.Row{d.Name, d.Priority, d.Parallel, d.Description})
			}

			tbl.Render()

			return nil
		},
	}
}

// NewRulesCommand validates a rule database file against the schema.
func NewRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules FILE",
		Short: "Check a crash rule database file",
		Long:  "Validate a YAML crash rule database against the schema and compile its patterns.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read rules: %w", err)
			}

			db, err := rules.Load(data)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d main errors, %d suspects, %d settings, %d plugin conflicts\n",
				args[0], len(db.MainErrors), len(db.Suspects), len(db.Settings), len(db.PluginConflicts))

			return nil
		},
	}
}

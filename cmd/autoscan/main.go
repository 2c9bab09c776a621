// Package main provides the entry point for the autoscan CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/autoscan/cmd/autoscan/commands"
	"github.com/Sumatoshi-tech/autoscan/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "autoscan",
		Short: "Autoscan - crash log diagnostics",
		Long: `Autoscan reads game crash logs, matches them against known crash
patterns and writes a markdown diagnosis next to each log.

Commands:
  scan       Scan crash logs and write reports
  analyzers  List built-in analyzers
  rules      Check a crash rule database file`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewAnalyzersCommand())
	rootCmd.AddCommand(commands.NewRulesCommand())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "autoscan %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

// Package main provides the entry point for the adaptivegc CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarahrileyjo/adaptivegc/cmd/adaptivegc/commands"
	"github.com/sarahrileyjo/adaptivegc/pkg/version"
)

var verbose bool

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "adaptivegc",
		Short: "Adaptive generational GC sizing policy simulator",
		Long: `adaptivegc drives the adaptive generational garbage collector sizing
policy against a synthetic workload and reports how the eden,
survivor, and old-generation target sizes evolve over the run.

Commands:
  simulate  Drive the adaptive sizing policy with a synthetic workload`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(commands.NewSimulateCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "adaptivegc %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

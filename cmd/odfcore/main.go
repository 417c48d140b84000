// Package main provides the entry point for the odfcore CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/odfcore/cmd/odfcore/commands"
	"github.com/Sumatoshi-tech/odfcore/pkg/version"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "odfcore",
		Short: "odfcore - versioned derivative dataset lifecycle manager",
		Long: `odfcore manages a workspace of versioned, lineage-tracked datasets.

Commands:
  pull      Ingest root datasets and recompute derivatives
  add       Add datasets from DatasetSnapshot manifest files
  delete    Delete datasets and their bulk data
  list      List datasets in the workspace`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to odfcore config file")

	commands.SetVerbosity(&verbose, &quiet)

	rootCmd.AddCommand(commands.NewPullCommand(&configPath))
	rootCmd.AddCommand(commands.NewAddCommand(&configPath))
	rootCmd.AddCommand(commands.NewDeleteCommand(&configPath))
	rootCmd.AddCommand(commands.NewListCommand(&configPath))
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "odfcore %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

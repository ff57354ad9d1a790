// Package main provides the structgrep CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegrove/structgrep/pkg/version"
)

var (
	cfgFile string //nolint:gochecknoglobals // CLI flag variable
	verbose bool   //nolint:gochecknoglobals // CLI flag variable
	quiet   bool   //nolint:gochecknoglobals // CLI flag variable
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "structgrep",
		Short: "Structural code search and rewrite",
		Long:  `structgrep finds and rewrites code by matching the shape of its syntax tree, not its text.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./structgrep.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(rewriteCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(lspCmd())
	rootCmd.AddCommand(completionCmd())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "structgrep %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}

	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/lsp"
)

func lspCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start an LSP server for editing rule documents",
		Long: `Start a Language Server Protocol server on stdio for structgrep rule YAML.

Provides completion and hover for the rule schema's keys and diagnostics
from compiling each open document against --language.

Examples:
  structgrep lsp --language go`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			registry := lang.NewRegistry()

			srv, err := lsp.NewServer(registry, language)
			if err != nil {
				return fmt.Errorf("start lsp server: %w", err)
			}

			srv.Run()

			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "go", "language to validate rule documents against")

	return cmd
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegrove/structgrep/pkg/mcp"
	"github.com/codegrove/structgrep/pkg/observability"
	"github.com/codegrove/structgrep/pkg/version"
)

func mcpCmd() *cobra.Command {
	var (
		debug           bool
		diagnosticsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server exposing search and rewrite as tools",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes two tools that AI agents can discover and invoke:
  - structgrep_search: find structural matches of a rule in a code snippet
  - structgrep_rewrite: apply a rule's fix to a code snippet`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			providers, err := initMCPObservability(debug)
			if err != nil {
				return err
			}

			defer func() {
				if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			if diagnosticsAddr != "" {
				diagServer, diagErr := observability.NewDiagnosticsServer(diagnosticsAddr, nil)
				if diagErr != nil {
					return diagErr
				}

				defer diagServer.Close()

				providers.Logger.Info("diagnostics server listening", "addr", diagServer.Addr())
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:  providers.Logger,
				Metrics: red,
				Tracer:  providers.Tracer,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")
	cmd.Flags().StringVar(&diagnosticsAddr, "diagnostics-addr", "", "address to serve /healthz, /readyz, and /metrics on (e.g. :9090)")

	return cmd
}

func initMCPObservability(debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return observability.Init(cfg)
}

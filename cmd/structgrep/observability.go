package main

import (
	"os"

	"github.com/codegrove/structgrep/pkg/observability"
	"github.com/codegrove/structgrep/pkg/version"
)

// initCLIObservability builds tracing/metrics/logging providers for a CLI
// invocation. Providers are no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set,
// so search and rewrite carry zero export overhead by default.
func initCLIObservability(mode observability.AppMode) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.Mode = mode
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	providers, err := observability.Init(cfg)
	if err != nil {
		return observability.Providers{}, err
	}

	return providers, nil
}

// Package mcp implements a Model Context Protocol server exposing the
// structural search-and-rewrite engine as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/match"
	"github.com/codegrove/structgrep/pkg/observability"
	"github.com/codegrove/structgrep/pkg/rewrite"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "structgrep"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Registry is the language registry used to resolve the language input
	// parameter. Nil uses lang.NewRegistry().
	Registry *lang.Registry
}

// Server wraps the MCP SDK server with structgrep tool registrations.
type Server struct {
	inner    *mcpsdk.Server
	mu       sync.RWMutex
	tools    []string
	metrics  *observability.REDMetrics
	tracer   trace.Tracer
	registry *lang.Registry
}

// NewServer creates a new MCP server with the search and rewrite tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	registry := deps.Registry
	if registry == nil {
		registry = lang.NewRegistry()
	}

	srv := &Server{
		inner:    inner,
		tools:    make([]string, 0, toolCount),
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		registry: registry,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds the search and rewrite tools to the server.
func (s *Server) registerTools() {
	s.registerSearchTool()
	s.registerRewriteTool()
}

func (s *Server) registerSearchTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameSearch,
		Description: searchToolDescription,
	}, withMetrics(s.metrics, ToolNameSearch, withTracing(s.tracer, ToolNameSearch, s.handleSearch)))

	s.trackTool(ToolNameSearch)
}

func (s *Server) registerRewriteTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameRewrite,
		Description: rewriteToolDescription,
	}, withMetrics(s.metrics, ToolNameRewrite, withTracing(s.tracer, ToolNameRewrite, s.handleRewrite)))

	s.trackTool(ToolNameRewrite)
}

// handleSearch processes structgrep_search tool calls: it compiles the
// given rule for the given language and returns every match found in code.
func (s *Server) handleSearch(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input SearchInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateCodeInput(input.Code, input.Language); err != nil {
		return errorResult(err)
	}

	if input.Rule == "" {
		return errorResult(ErrEmptyRule)
	}

	l, err := resolveLanguage(s.registry, input.Language)
	if err != nil {
		return errorResult(err)
	}

	rc, err := match.Compile(l, ruleDocument(input.Rule))
	if err != nil {
		return errorResult(fmt.Errorf("compile rule: %w", err))
	}

	doc, err := match.Parse(l, []byte(input.Code))
	if err != nil {
		return errorResult(fmt.Errorf("parse code: %w", err))
	}
	defer doc.Close()

	matches := rc.FindAll(doc)
	results := make([]MatchResult, 0, len(matches))

	for _, m := range matches {
		rng := m.Node.Range()
		results = append(results, MatchResult{
			Kind:     m.Node.Kind(),
			Text:     m.Node.Text(),
			StartRow: rng.Start.Row,
			StartCol: rng.Start.Column,
			EndRow:   rng.End.Row,
			EndCol:   rng.End.Column,
			Captures: m.Env.Captures(),
		})
	}

	return jsonResult(results)
}

// handleRewrite processes structgrep_rewrite tool calls: it compiles the
// given rule (which must carry a fix:) and returns the rewritten source.
func (s *Server) handleRewrite(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input RewriteInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateCodeInput(input.Code, input.Language); err != nil {
		return errorResult(err)
	}

	if input.Rule == "" {
		return errorResult(ErrEmptyRule)
	}

	l, err := resolveLanguage(s.registry, input.Language)
	if err != nil {
		return errorResult(err)
	}

	rc, err := match.Compile(l, ruleDocument(input.Rule))
	if err != nil {
		return errorResult(fmt.Errorf("compile rule: %w", err))
	}

	doc, err := match.Parse(l, []byte(input.Code))
	if err != nil {
		return errorResult(fmt.Errorf("parse code: %w", err))
	}
	defer doc.Close()

	edits, err := rc.Rewrite(doc)
	if err != nil {
		return errorResult(fmt.Errorf("rewrite: %w", err))
	}

	return jsonResult(rewrite.Apply(input.Code, edits))
}

// ruleDocument accepts either a full rule document in YAML (a mapping with a
// top-level "rule" key) or a bare pattern string, and returns a document
// Compile can parse either way.
func ruleDocument(rule string) []byte {
	var probe yaml.Node
	if err := yaml.Unmarshal([]byte(rule), &probe); err == nil {
		doc := &probe
		if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
			doc = doc.Content[0]
		}

		if doc.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(doc.Content); i += 2 {
				if doc.Content[i].Value == "rule" {
					return []byte(rule)
				}
			}
		}
	}

	wrapped, err := yaml.Marshal(map[string]any{
		"rule": map[string]string{"pattern": rule},
	})
	if err != nil {
		return []byte(rule)
	}

	return wrapped
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		// Include trace_id in response when span is sampled.
		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, "mcp."+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, "mcp."+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	searchToolDescription = "Search source code for a structural pattern. " +
		"Accepts inline code, a language identifier, and a structgrep rule " +
		"(a bare pattern string or a full YAML rule document). Returns every match."

	rewriteToolDescription = "Rewrite source code by applying a structgrep rule's fix. " +
		"Accepts inline code, a language identifier, and a YAML rule document " +
		"that includes a fix:. Returns the rewritten source."
)

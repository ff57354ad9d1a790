// Package lsp provides a Language Server Protocol server for structgrep rule
// documents: completion and hover for the rule schema's keys, and
// diagnostics from compiling the open document against a target language.
package lsp

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/match"
)

// DocumentStore is a thread-safe store for open rule document contents keyed
// by URI.
type DocumentStore struct {
	documents map[string]string
	mu        sync.RWMutex
}

// NewDocumentStore creates a new empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[string]string)}
}

// Set stores document content for the given URI.
func (ds *DocumentStore) Set(uri, content string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = content
}

// Get retrieves document content by URI.
func (ds *DocumentStore) Get(uri string) (string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	content, ok := ds.documents[uri]

	return content, ok
}

// Delete removes document content by URI.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// Server implements the rule document LSP server. Diagnostics compile each
// open document against a single target language fixed at construction,
// since a rule document's pattern syntax is only meaningful relative to one
// grammar.
type Server struct {
	store    *DocumentStore
	handler  protocol.Handler
	registry *lang.Registry
	language *lang.Language
}

// NewServer creates a rule document LSP server that validates documents
// against language. registry must contain language.
func NewServer(registry *lang.Registry, language string) (*Server, error) {
	l, err := registry.Get(language)
	if err != nil {
		return nil, fmt.Errorf("lsp server: %w", err)
	}

	srv := &Server{store: NewDocumentStore(), registry: registry, language: l}

	srv.handler = protocol.Handler{
		Initialize:             srv.initialize,
		Initialized:            srv.initialized,
		Shutdown:               srv.shutdown,
		SetTrace:               srv.setTrace,
		TextDocumentDidOpen:    srv.didOpen,
		TextDocumentDidChange:  srv.didChange,
		TextDocumentDidSave:    srv.didSave,
		TextDocumentDidClose:   srv.didClose,
		TextDocumentCompletion: srv.completion,
		TextDocumentHover:      srv.hover,
	}

	return srv, nil
}

// Run starts the LSP server on stdio.
func (srv *Server) Run() {
	lspServer := server.NewServer(&srv.handler, "structgrep rule", false)

	err := lspServer.RunStdio()
	if err != nil {
		log.Printf("LSP server error: %v", err)
	}
}

func (srv *Server) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()
	version := "1.0.0"

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    "structgrep rule",
			Version: &version,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	srv.store.Set(uri, text)
	srv.publishDiagnostics(ctx, uri)

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	if len(params.ContentChanges) > 0 {
		if change, ok := params.ContentChanges[0].(map[string]any); ok {
			if text, ok := change["text"].(string); ok {
				srv.store.Set(uri, text)
				srv.publishDiagnostics(ctx, uri)
			}
		}
	}

	return nil
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if _, ok := srv.store.Get(uri); ok {
		srv.publishDiagnostics(ctx, uri)
	}

	return nil
}

func (srv *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	srv.store.Delete(uri)

	return nil
}

var (
	ruleKeywords = []protocol.CompletionItem{
		completionItem("rule", protocol.CompletionItemKindKeyword, "The matcher tree: pattern/kind/relational/composite"),
		completionItem("fix", protocol.CompletionItemKindKeyword, "Replacement template, or {template, expandStart, expandEnd}"),
		completionItem("constraints", protocol.CompletionItemKindKeyword, "Per-metavariable regex/kind/pattern constraints"),
		completionItem("utils", protocol.CompletionItemKindKeyword, "Named sub-rules referenced by matches: elsewhere"),
		completionItem("transform", protocol.CompletionItemKindKeyword, "Post-match string transforms over captures"),
	}

	ruleNodeFields = []protocol.CompletionItem{
		completionItem("pattern", protocol.CompletionItemKindField, "A pattern string with $METAVAR / $$$ ellipsis tokens"),
		completionItem("kind", protocol.CompletionItemKindField, "A grammar production name to match by kind alone"),
		completionItem("regex", protocol.CompletionItemKindField, "A regular expression matched against node text"),
		completionItem("inside", protocol.CompletionItemKindField, "Relational: matches if an ancestor matches the sub-rule"),
		completionItem("has", protocol.CompletionItemKindField, "Relational: matches if a descendant matches the sub-rule"),
		completionItem("precedes", protocol.CompletionItemKindField, "Relational: matches if a later sibling matches the sub-rule"),
		completionItem("follows", protocol.CompletionItemKindField, "Relational: matches if an earlier sibling matches the sub-rule"),
		completionItem("all", protocol.CompletionItemKindField, "Composite: matches if every sub-rule matches"),
		completionItem("any", protocol.CompletionItemKindField, "Composite: matches if any sub-rule matches"),
		completionItem("not", protocol.CompletionItemKindField, "Composite: matches if the sub-rule does not match"),
		completionItem("matches", protocol.CompletionItemKindField, "References a named util rule by id"),
		completionItem("stopBy", protocol.CompletionItemKindField, "Bounds relational traversal: \"neighbor\", \"end\" or a sub-rule"),
		completionItem("field", protocol.CompletionItemKindField, "Restricts a relational match to a named child field"),
	}

	hoverDocs = map[string]string{
		"rule":        "The matcher tree for this document. Example: `rule:\\n  pattern: \"$A + $B\"`.",
		"fix":         "A replacement template. `$METAVAR` tokens are substituted with captured text.",
		"constraints": "Maps a metavariable id to an extra constraint it must satisfy to bind.",
		"utils":       "Named sub-rules other rules reference with `matches: <id>`.",
		"transform":   "Derives a new capture from an existing one via a string operation.",
		"pattern":     "A code fragment with metavariables. `$A` captures one node, `$$$A` captures zero or more.",
		"kind":        "Matches any node whose grammar production name equals this string.",
		"regex":       "Matches a node whose source text matches this regular expression.",
		"inside":      "True when some ancestor of the candidate node matches the nested sub-rule.",
		"has":         "True when some descendant of the candidate node matches the nested sub-rule.",
		"precedes":    "True when a following sibling of the candidate node matches the nested sub-rule.",
		"follows":     "True when a preceding sibling of the candidate node matches the nested sub-rule.",
		"all":         "True when every listed sub-rule matches the candidate node.",
		"any":         "True when at least one listed sub-rule matches the candidate node.",
		"not":         "True when the nested sub-rule does not match the candidate node.",
		"matches":     "Delegates to the named entry under the top-level `utils` map.",
		"stopBy":      "Bounds how far relational traversal looks before giving up.",
	}
)

func completionItem(label string, kind protocol.CompletionItemKind, detail string) protocol.CompletionItem {
	return protocol.CompletionItem{Label: label, Kind: &kind, Detail: &detail}
}

func (srv *Server) completion(_ *glsp.Context, _ *protocol.CompletionParams) (any, error) {
	items := make([]protocol.CompletionItem, 0, len(ruleKeywords)+len(ruleNodeFields))
	items = append(items, ruleKeywords...)
	items = append(items, ruleNodeFields...)

	return protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func (srv *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	text, ok := srv.store.Get(uri)
	if !ok {
		return nil, nil //nolint:nilnil // LSP protocol expects nil hover when no document found
	}

	word := extractWordAtPosition(text, int(pos.Line), int(pos.Character))

	doc, found := hoverDocs[word]
	if !found {
		return nil, nil //nolint:nilnil // LSP protocol expects nil hover when no docs available
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: doc},
	}, nil
}

func extractWordAtPosition(text string, line, character int) string {
	lines := strings.Split(text, "\n")
	if line >= len(lines) {
		return ""
	}

	lineText := lines[line]
	if character > len(lineText) {
		character = len(lineText)
	}

	start := character
	for start > 0 && isWordChar(lineText[start-1]) {
		start--
	}

	end := character
	for end < len(lineText) && isWordChar(lineText[end]) {
		end++
	}

	return lineText[start:end]
}

func isWordChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

// publishDiagnostics compiles the document at uri against srv.language and
// reports a single diagnostic at the top of the document on failure, or
// clears diagnostics on success.
func (srv *Server) publishDiagnostics(ctx *glsp.Context, uri string) {
	text, ok := srv.store.Get(uri)
	if !ok {
		return
	}

	diagnostics := []protocol.Diagnostic{}

	if _, err := match.Compile(srv.language, []byte(text)); err != nil {
		severity := protocol.DiagnosticSeverityError
		source := "structgrep"
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 0},
				End:   protocol.Position{Line: 0, Character: 1},
			},
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
	}

	ctx.Notify("textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

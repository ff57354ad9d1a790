package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegrove/structgrep/pkg/lang"
)

// Tool name constants.
const (
	ToolNameSearch  = "structgrep_search"
	ToolNameRewrite = "structgrep_rewrite"
)

// Input size limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrEmptyLanguage indicates the language parameter is empty.
	ErrEmptyLanguage = errors.New("language parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrEmptyRule indicates the rule parameter is empty.
	ErrEmptyRule = errors.New("rule parameter is required and must not be empty")
	// ErrUnsupportedLanguage indicates the language is not supported by any registered grammar.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// SearchInput is the input schema for the structgrep_search tool.
type SearchInput struct {
	Code     string `json:"code"     jsonschema:"source code to search"`
	Language string `json:"language" jsonschema:"programming language (e.g. go python javascript)"`
	Rule     string `json:"rule"     jsonschema:"a structgrep rule document in YAML, or a bare pattern string"`
}

// RewriteInput is the input schema for the structgrep_rewrite tool.
type RewriteInput struct {
	Code     string `json:"code"     jsonschema:"source code to rewrite"`
	Language string `json:"language" jsonschema:"programming language (e.g. go python javascript)"`
	Rule     string `json:"rule"     jsonschema:"a structgrep rule document in YAML; must include a fix"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// MatchResult is one reported match in a search response.
type MatchResult struct {
	Captures map[string]string `json:"captures,omitempty"`
	Kind     string            `json:"kind"`
	Text     string            `json:"text"`
	StartRow int               `json:"start_row"`
	StartCol int               `json:"start_col"`
	EndRow   int               `json:"end_row"`
	EndCol   int               `json:"end_col"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateCodeInput checks common code/language input constraints.
func validateCodeInput(code, language string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if language == "" {
		return ErrEmptyLanguage
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}

// resolveLanguage looks up a language by name, translating the registry's
// unknown-language error into ErrUnsupportedLanguage for tool callers.
func resolveLanguage(registry *lang.Registry, name string) (*lang.Language, error) {
	l, err := registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, name)
	}

	return l, nil
}

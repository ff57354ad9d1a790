// Package lang holds the language registry: a table mapping language
// identifiers to a parser, a metavariable prefix character, and a kind
// vocabulary. It is an external collaborator of the match engine, not
// part of the engine itself — pkg/match never imports the concrete
// tree-sitter grammar packages directly, only the *Language value it is
// handed.
package lang

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/cpp"
	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/java"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/json"
	"github.com/alexaandru/go-sitter-forest/python"
	"github.com/alexaandru/go-sitter-forest/rust"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	"github.com/alexaandru/go-sitter-forest/yaml"
)

// defaultMetaChar is the metavariable prefix used by every built-in language.
const defaultMetaChar = '$'

// languageFuncs maps a language identifier to its tree-sitter grammar
// constructor. Only languages with a concrete scan/rewrite use in this
// module are wired; add an entry here to support another grammar.
var languageFuncs = map[string]func() unsafe.Pointer{
	"c":          c.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"go":         golang.GetLanguage,
	"java":       java.GetLanguage,
	"javascript": javascript.GetLanguage,
	"json":       json.GetLanguage,
	"python":     python.GetLanguage,
	"rust":       rust.GetLanguage,
	"tsx":        tsx.GetLanguage,
	"typescript": typescript.GetLanguage,
	"yaml":       yaml.GetLanguage,
}

// extByLanguage maps a file extension (including the leading dot) to the
// registry identifier of the language that owns it, for callers (the CLI's
// explicit file list path) that need to guess a language without the
// vendor/generated heuristics internal/walk applies during a directory walk.
var extByLanguage = map[string]string{
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
	".go":   "go",
	".java": "java",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".json": "json",
	".py":   "python",
	".rs":   "rust",
	".tsx":  "tsx",
	".ts":   "typescript",
	".yaml": "yaml",
	".yml":  "yaml",
}

// GuessFromExtension returns the registry identifier for a file extension
// (as returned by filepath.Ext, including the leading dot), or "" if no
// built-in language claims it.
func GuessFromExtension(ext string) string {
	return extByLanguage[ext]
}

// Language is a parseable grammar plus the metadata the match engine
// needs: the metavariable prefix character and kind-name resolution.
type Language struct {
	name     string
	meta     byte
	ts       *sitter.Language
	kindOnce sync.Once
	kinds    map[string]uint16
}

// Name returns the language identifier (e.g. "go", "javascript").
func (l *Language) Name() string { return l.name }

// MetaChar returns the character that begins a metavariable token in patterns
// written for this language. Defaults to '$'.
func (l *Language) MetaChar() byte { return l.meta }

// NewParser returns a tree-sitter parser bound to this language's grammar.
// Callers own the returned parser and must not share it across goroutines.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.ts)

	return p
}

// TSLanguage returns the underlying tree-sitter language, for components
// that need it directly.
func (l *Language) TSLanguage() *sitter.Language {
	return l.ts
}

// KindID resolves a grammar production name to its numeric kind-id,
// consulting the tree-sitter symbol table once per language. The second
// return value is false when the language's grammar has no such kind —
// kind names are validated at rule-compile time, never at match time.
func (l *Language) KindID(name string) (uint16, bool) {
	l.kindOnce.Do(func() {
		count := l.ts.SymbolCount()
		l.kinds = make(map[string]uint16, count)

		for sym := 0; sym < count; sym++ {
			l.kinds[l.ts.SymbolName(sitter.Symbol(sym))] = uint16(sym)
		}
	})

	id, ok := l.kinds[name]

	return id, ok
}

// Registry holds the set of languages known to the process. It is built
// once at startup and treated as immutable thereafter — the match engine
// never mutates a registry it is handed.
type Registry struct {
	mu        sync.RWMutex
	languages map[string]*Language
}

// NewRegistry builds a registry populated with every language this module
// ships a grammar for.
func NewRegistry() *Registry {
	r := &Registry{languages: make(map[string]*Language, len(languageFuncs))}

	for name, fn := range languageFuncs {
		r.languages[name] = &Language{
			name: name,
			meta: defaultMetaChar,
			ts:   sitter.NewLanguage(fn()),
		}
	}

	return r
}

// ErrUnknownLanguage is returned when a rule or file references a language
// identifier absent from the registry.
var ErrUnknownLanguage = fmt.Errorf("unknown language")

// Get returns the language registered under name.
func (r *Registry) Get(name string) (*Language, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.languages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
	}

	return l, nil
}

// Names returns the sorted set of registered language identifiers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.languages))
	for name := range r.languages {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

package match

import (
	"fmt"
	"strings"

	"github.com/codegrove/structgrep/pkg/lang"
)

// Pattern is a parsed tree over a language whose leaves may be
// metavariable tokens, with one designated match root (§3, §4.C). A
// Pattern owns the Document it was parsed from.
type Pattern struct {
	doc  *Document
	root *Node
	lang *lang.Language
}

// Root returns the pattern's match root.
func (p *Pattern) Root() *Node { return p.root }

// Source returns the pattern's own source bytes, for template substitution.
func (p *Pattern) Source() []byte { return p.doc.Source() }

// unwrapToContent descends through grammar productions that exist only to
// wrap a single child (e.g. a "source_file" or "expression_statement"
// around the snippet's real content), so the match root is the
// syntactically meaningful node rather than an always-present wrapper.
func unwrapToContent(n *Node) *Node {
	for n.ChildCount() == 1 {
		only := n.Child(0)
		if only == nil {
			break
		}

		n = only
	}

	return n
}

// CompilePattern parses snippet as language and returns the resulting
// Pattern, with the match root unwrapped past any single-child grammar
// wrappers the parser introduced around it.
func CompilePattern(language *lang.Language, snippet string) (*Pattern, error) {
	if strings.TrimSpace(snippet) == "" {
		return nil, &CompileError{Kind: KindPattern, Err: ErrEmptyPattern}
	}

	doc, err := Parse(language, []byte(snippet))
	if err != nil {
		return nil, err
	}

	return &Pattern{doc: doc, root: unwrapToContent(doc.Root()), lang: language}, nil
}

// CompileContextualPattern implements the Contextual{context, selector}
// form (§4.C, GLOSSARY): context is parsed in full so the grammar has
// enough surrounding syntax to accept the fragment, and the match root is
// the first node (pre-order) whose grammar kind equals selector.
func CompileContextualPattern(language *lang.Language, context, selector string) (*Pattern, error) {
	if strings.TrimSpace(context) == "" {
		return nil, &CompileError{Kind: KindPattern, Err: ErrEmptyPattern}
	}

	doc, err := Parse(language, []byte(context))
	if err != nil {
		return nil, err
	}

	for n := range doc.Root().DFS() {
		if n.Kind() == selector {
			return &Pattern{doc: doc, root: n, lang: language}, nil
		}
	}

	return nil, &CompileError{
		Kind: KindPattern,
		Err:  fmt.Errorf("%w: %q not found in %q", ErrSelectorNotFound, selector, context),
	}
}

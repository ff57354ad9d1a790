package match

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/codegrove/structgrep/pkg/lang"
)

// parserPools lends out per-language *sitter.Parser instances so repeated
// parses (one per file scanned, one per pattern compiled) do not pay
// allocation cost for the parser itself. Grounded on the teacher's
// sync.Pool of *sitter.Parser keyed by language.
var (
	parserPoolsMu sync.Mutex
	parserPools   = map[*lang.Language]*sync.Pool{}
)

func parserPoolFor(l *lang.Language) *sync.Pool {
	parserPoolsMu.Lock()
	defer parserPoolsMu.Unlock()

	if p, ok := parserPools[l]; ok {
		return p
	}

	p := &sync.Pool{New: func() any { return l.NewParser() }}
	parserPools[l] = p

	return p
}

// Document is a parsed source buffer: the tree-sitter tree plus the source
// bytes it was parsed from. It owns the tree's native memory; callers must
// call Close when every Node borrowed from it is done being used (§5
// borrow discipline).
type Document struct {
	lang   *lang.Language
	source []byte
	tree   *sitter.Tree
	root   *Node
}

// Parse parses source as language and returns the resulting Document.
func Parse(language *lang.Language, source []byte) (*Document, error) {
	pool := parserPoolFor(language)

	parser, _ := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseString(context.Background(), nil, source)
	if err != nil {
		return nil, &CompileError{Kind: KindParse, Err: fmt.Errorf("parse source: %w", err)}
	}

	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()

		return nil, &CompileError{Kind: KindParse, Err: fmt.Errorf("parse source: empty tree")}
	}

	return &Document{
		lang:   language,
		source: source,
		tree:   tree,
		root:   newNode(root, source, language),
	}, nil
}

// Root returns the document's root node.
func (d *Document) Root() *Node { return d.root }

// Language returns the language the document was parsed with.
func (d *Document) Language() *lang.Language { return d.lang }

// Source returns the document's raw source bytes.
func (d *Document) Source() []byte { return d.source }

// Close releases the tree's native memory. Nodes borrowed from d must not
// be used after Close.
func (d *Document) Close() {
	if d.tree != nil {
		d.tree.Close()
		d.tree = nil
	}
}

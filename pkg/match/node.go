package match

import (
	"iter"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/codegrove/structgrep/pkg/lang"
)

// Position is a zero-based row/column location in a source buffer.
type Position struct {
	Row    int
	Column int
}

// Range is a half-open byte span plus its start/end positions.
type Range struct {
	StartByte int
	EndByte   int
	Start     Position
	End       Position
}

// Node is the read-only capability set §4.B requires over a candidate node:
// a uniform view over the syntax-tree provider that the matcher, the rule
// algebra, and the fixer consume without ever touching sitter.Node
// directly. Node wraps a borrowed tree-sitter node; it must not outlive
// the Document that produced it.
type Node struct {
	raw    sitter.Node
	source []byte
	lang   *lang.Language
}

// newNode wraps raw, or returns nil if raw is the null node.
func newNode(raw sitter.Node, source []byte, language *lang.Language) *Node {
	if raw.IsNull() {
		return nil
	}

	return &Node{raw: raw, source: source, lang: language}
}

// KindID returns the grammar production id tree-sitter assigned this node.
func (n *Node) KindID() uint16 { return uint16(n.raw.Symbol()) }

// Kind returns the grammar production name, e.g. "binary_expression".
func (n *Node) Kind() string { return n.raw.Type() }

// IsNamed reports whether the node corresponds to a named grammar rule
// (as opposed to anonymous literal syntax such as punctuation).
func (n *Node) IsNamed() bool { return n.raw.IsNamed() }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.raw.ChildCount() == 0 }

// IsNamedLeaf reports whether the node is both named and childless.
func (n *Node) IsNamedLeaf() bool { return n.IsNamed() && n.IsLeaf() }

// Text returns the node's source text, verbatim including whitespace within it.
func (n *Node) Text() string { return n.raw.Content(n.source) }

// Range returns the node's byte span and row/column positions.
func (n *Node) Range() Range {
	sp := n.raw.StartPoint()
	ep := n.raw.EndPoint()

	return Range{
		StartByte: n.raw.StartByte(),
		EndByte:   n.raw.EndByte(),
		Start:     Position{Row: int(sp.Row), Column: int(sp.Column)},
		End:       Position{Row: int(ep.Row), Column: int(ep.Column)},
	}
}

// StartPos returns the node's start row/column.
func (n *Node) StartPos() Position { return n.Range().Start }

// EndPos returns the node's end row/column.
func (n *Node) EndPos() Position { return n.Range().End }

// ChildCount returns the number of children, named and anonymous alike.
// Sibling matching (§4.D) walks this full sequence, not just named
// children: an ellipsis goal must see the literal comma tokens between
// elements in order to anchor against them.
func (n *Node) ChildCount() int { return n.raw.ChildCount() }

// Child returns the i-th child (named or anonymous), or nil if out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= n.raw.ChildCount() {
		return nil
	}

	return newNode(n.raw.Child(i), n.source, n.lang)
}

// Children returns every child, named and anonymous, left to right.
func (n *Node) Children() []*Node {
	count := n.raw.ChildCount()
	out := make([]*Node, 0, count)

	for i := 0; i < count; i++ {
		if c := newNode(n.raw.Child(i), n.source, n.lang); c != nil {
			out = append(out, c)
		}
	}

	return out
}

// NamedChildren returns only the named children, left to right, skipping
// anonymous punctuation tokens.
func (n *Node) NamedChildren() []*Node {
	count := n.raw.NamedChildCount()
	out := make([]*Node, 0, count)

	for i := 0; i < count; i++ {
		if c := newNode(n.raw.NamedChild(i), n.source, n.lang); c != nil {
			out = append(out, c)
		}
	}

	return out
}

// Parent returns the node's parent, or nil at the root.
func (n *Node) Parent() *Node { return newNode(n.raw.Parent(), n.source, n.lang) }

// NextSibling returns the next named sibling, or nil.
func (n *Node) NextSibling() *Node { return newNode(n.raw.NextNamedSibling(), n.source, n.lang) }

// PrevSibling returns the previous named sibling, or nil.
func (n *Node) PrevSibling() *Node { return newNode(n.raw.PrevNamedSibling(), n.source, n.lang) }

// Field returns the named child occupying the given grammar field, or nil.
func (n *Node) Field(name string) *Node {
	return newNode(n.raw.ChildByFieldName(name), n.source, n.lang)
}

// FieldChildren returns every named child occupying the given grammar
// field. Most fields hold at most one child; repeated fields (e.g. a list
// of case clauses) hold several.
func (n *Node) FieldChildren(name string) []*Node {
	var out []*Node

	for i := 0; i < n.raw.ChildCount(); i++ {
		if n.raw.FieldNameForChild(i) != name {
			continue
		}

		if c := newNode(n.raw.Child(i), n.source, n.lang); c != nil {
			out = append(out, c)
		}
	}

	return out
}

// Ancestors yields parent, grandparent, ... up to the root.
func (n *Node) Ancestors() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for cur := n.Parent(); cur != nil; cur = cur.Parent() {
			if !yield(cur) {
				return
			}
		}
	}
}

// DFS yields n and every descendant in pre-order, lazily. Iteration stops
// if the consumer stops pulling, so a caller scanning for the first match
// never materializes the rest of the subtree.
func (n *Node) DFS() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		var walk func(*Node) bool

		walk = func(cur *Node) bool {
			if !yield(cur) {
				return false
			}

			for _, c := range cur.Children() {
				if !walk(c) {
					return false
				}
			}

			return true
		}

		walk(n)
	}
}

// Equal reports whether n and other refer to the same tree-sitter node.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}

	return n.raw.Equal(other.raw)
}

// StructurallyEqual implements does_node_match_exactly (§4.D): recursive
// equality of kind-id and, for leaves, text. Used for back-reference checks.
func (n *Node) StructurallyEqual(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}

	if n.KindID() != other.KindID() {
		return false
	}

	if n.IsLeaf() != other.IsLeaf() {
		return false
	}

	if n.IsLeaf() {
		return n.Text() == other.Text()
	}

	nc, oc := n.Children(), other.Children()
	if len(nc) != len(oc) {
		return false
	}

	for i := range nc {
		if !nc[i].StructurallyEqual(oc[i]) {
			return false
		}
	}

	return true
}

package match

// Edit is the output of a successful fix: replace deletedLength bytes at
// position with insertedText. Edits within one pass must be non-overlapping
// and sorted by position (§6, §8 property 10); RuleCore.Rewrite (scan.go)
// enforces that across a full document run.
type Edit struct {
	Position      int
	DeletedLength int
	InsertedText  []byte
}

// Fixer is the replacement side of a rule (§4.G): a template plus optional
// start/end range expansions.
type Fixer struct {
	Template    *Pattern
	ExpandStart *Relation
	ExpandEnd   *Relation
}

// leaves returns every leaf (childless node) under n, in pre-order.
func leaves(n *Node) []*Node {
	var out []*Node

	for d := range n.DFS() {
		if d.IsLeaf() {
			out = append(out, d)
		}
	}

	return out
}

// substitute performs the template substitution walk described in §4.G:
// pre-order over the template's leaves, copying verbatim template bytes
// between leaves and resolving metavariable leaves against env.
func substitute(tmpl *Pattern, env *MetaVarEnv, mc byte) []byte {
	root := tmpl.Root()
	src := tmpl.Source()

	buf := make([]byte, 0, root.Range().EndByte-root.Range().StartByte)
	cursor := root.Range().StartByte

	for _, leaf := range leaves(root) {
		r := leaf.Range()
		if r.StartByte > cursor {
			buf = append(buf, src[cursor:r.StartByte]...)
		}

		switch mv := metavarAt(leaf, mc); mv.Kind {
		case VarNamed:
			if node, ok := env.Get(mv.ID); ok {
				buf = append(buf, node.Text()...)
			} else if s, ok := env.GetString(mv.ID); ok {
				buf = append(buf, s...)
			}
		case VarNamedEllipsis:
			if nodes, ok := env.GetMulti(mv.ID); ok && len(nodes) > 0 {
				start := nodes[0].Range().StartByte
				end := nodes[len(nodes)-1].Range().EndByte
				buf = append(buf, nodes[0].source[start:end]...)
			}
		case VarAnonymous, VarEllipsis:
			// insert nothing.
		case VarNone:
			buf = append(buf, src[r.StartByte:r.EndByte]...)
		}

		cursor = r.EndByte
	}

	if end := root.Range().EndByte; end > cursor {
		buf = append(buf, src[cursor:end]...)
	}

	return buf
}

// ReplaceMetaVarInString is the plain-string interpolator (§4.G): scans s
// for mc, splits off the metavariable name, and substitutes its bound
// single-capture text, leaving unbound or non-metavariable text untouched.
func ReplaceMetaVarInString(s string, mc byte, env *MetaVarEnv) string {
	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); {
		if s[i] != mc {
			out = append(out, s[i])
			i++

			continue
		}

		id, rest, ok := SplitFirstMetaVar(s[i:], mc)
		if !ok {
			out = append(out, s[i])
			i++

			continue
		}

		if node, bound := env.Get(id); bound {
			out = append(out, node.Text()...)
		} else if str, bound := env.GetString(id); bound {
			out = append(out, str...)
		} else {
			out = append(out, s[i:len(s)-len(rest)]...)
		}

		i = len(s) - len(rest)
	}

	return string(out)
}

// expandRange walks siblings of matched, named and anonymous alike (so a
// comma token can be reached), under rel's stopBy, moving bound outward to
// the first sibling (in dir) that matches rel.Rule.
func expandRange(matched *Node, rel *Relation, env *MetaVarEnv, mc byte, dir int) (int, bool) {
	parent := matched.Parent()
	if parent == nil {
		return 0, false
	}

	siblings := parent.Children()

	idx := -1
	for i, s := range siblings {
		if s.Equal(matched) {
			idx = i

			break
		}
	}

	if idx < 0 {
		return 0, false
	}

	for i := idx + dir; i >= 0 && i < len(siblings); i += dir {
		sib := siblings[i]
		if _, ok := rel.Rule.Match(sib, env, mc); ok {
			if dir < 0 {
				return sib.Range().StartByte, true
			}

			return sib.Range().EndByte, true
		}

		if rel.StopBy.Kind == StopNeighbor {
			return 0, false
		}

		if rel.StopBy.Kind == StopRule {
			if _, ok := rel.StopBy.Rule.Match(sib, env, mc); ok {
				return 0, false
			}
		}
	}

	return 0, false
}

// Apply produces the edit for a successful match of matched, with captures
// in env, using f's template and expansions (§4.G).
func (f *Fixer) Apply(matched *Node, env *MetaVarEnv, mc byte) Edit {
	r := matched.Range()
	start, end := r.StartByte, r.EndByte

	if f.ExpandStart != nil {
		if b, ok := expandRange(matched, f.ExpandStart, env, mc, -1); ok {
			start = b
		}
	}

	if f.ExpandEnd != nil {
		if e, ok := expandRange(matched, f.ExpandEnd, env, mc, 1); ok {
			end = e
		}
	}

	return Edit{
		Position:      start,
		DeletedLength: end - start,
		InsertedText:  substitute(f.Template, env, mc),
	}
}

package match

import (
	"errors"
	"sort"
)

// ErrNoFixer is returned by Rewrite when a RuleCore has no fix configured.
var ErrNoFixer = errors.New("rule has no fix")

// Match is one successful top-level match: the candidate node the rule
// matched at, and the captures it produced.
type Match struct {
	Node *Node
	Env  *MetaVarEnv
}

// FindAll walks doc in pre-order (§4.D's find entry point) trying rc's rule
// at every node, keeping the ones that also pass every constraint (§4.F).
// Candidate nodes are tried outermost-first; a rule matching a node's
// ancestor and the node itself both appear, since nothing in §8 asks for
// suppression of nested matches at find time — that happens at fix time
// (see Rewrite).
func (rc *RuleCore) FindAll(doc *Document) []Match {
	mc := rc.Language.MetaChar()

	var out []Match

	for n := range doc.Root().DFS() {
		env, ok := rc.Rule.Match(n, NewMetaVarEnv(), mc)
		if !ok {
			continue
		}

		if !CheckConstraints(rc.Constraints, env, mc) {
			continue
		}

		out = append(out, Match{Node: n, Env: env})
	}

	return out
}

// Rewrite finds every match and applies rc's fixer to each, producing a
// sorted, pairwise-disjoint edit set (§6, §8 property 10). Matches nested
// inside an already-accepted edit's range are dropped: DFS pre-order visits
// an ancestor before its descendants, so the outer match wins.
func (rc *RuleCore) Rewrite(doc *Document) ([]Edit, error) {
	if rc.Fix == nil {
		return nil, ErrNoFixer
	}

	mc := rc.Language.MetaChar()
	matches := rc.FindAll(doc)

	edits := make([]Edit, 0, len(matches))
	for _, m := range matches {
		ApplyTransforms(rc.Transforms, m.Env)
		edits = append(edits, rc.Fix.Apply(m.Node, m.Env, mc))
	}

	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Position < edits[j].Position })

	out := edits[:0]

	lastEnd := -1

	for _, e := range edits {
		if e.Position < lastEnd {
			continue
		}

		out = append(out, e)
		lastEnd = e.Position + e.DeletedLength
	}

	return out, nil
}

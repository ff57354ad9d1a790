package match

import "regexp"

// MetaVarMatcher is a per-variable filter (§4.F) applied after a full rule
// succeeds: it tests the node captured under one metavariable id.
type MetaVarMatcher interface {
	Check(node *Node, mc byte) bool
}

// RegexConstraint requires the captured node's text to match a regex.
type RegexConstraint struct {
	Source string
	Re     *regexp.Regexp
}

func (c *RegexConstraint) Check(node *Node, _ byte) bool { return c.Re.MatchString(node.Text()) }

// PatternConstraint requires the captured node to structurally match a
// pattern, using MatchNode with the capture itself as the candidate root.
type PatternConstraint struct{ Pattern *Pattern }

func (c *PatternConstraint) Check(node *Node, mc byte) bool {
	_, ok := MatchNode(c.Pattern.Root(), node, NewMetaVarEnv(), mc)

	return ok
}

// KindConstraint requires the captured node's kind to equal a resolved id.
type KindConstraint struct {
	Name string
	ID   uint16
}

func (c *KindConstraint) Check(node *Node, _ byte) bool { return node.KindID() == c.ID }

// CheckConstraints applies every constraint in constraints against the
// captures in env, returning false (reject the overall match) on the
// first failing one. A constraint naming an id that was never captured
// (e.g. the losing branch of an Any) has nothing to check and is skipped.
func CheckConstraints(constraints map[string]MetaVarMatcher, env *MetaVarEnv, mc byte) bool {
	for id, matcher := range constraints {
		node, ok := env.Get(id)
		if !ok {
			continue
		}

		if !matcher.Check(node, mc) {
			return false
		}
	}

	return true
}

package match

import "regexp"

// Rule is the tagged variant described in §3: atomic, relational, or
// composite. Match tests cand and, on success, returns an env extending
// the input env with whatever this rule bound.
type Rule interface {
	Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool)
}

// StopByKind tags the traversal bound used by relational rules (§4.E).
type StopByKind int

const (
	StopNeighbor StopByKind = iota
	StopEnd
	StopRule
)

// StopBy bounds how far a relational rule searches along its direction.
type StopBy struct {
	Kind StopByKind
	Rule Rule // set when Kind == StopRule; the inclusive sentinel.
}

// Relation is the payload of a relational rule: the rule to satisfy, how
// far to search for it, and an optional grammar field narrowing which
// children are considered.
type Relation struct {
	Rule   Rule
	StopBy StopBy
	Field  string
}

// PatternRule is the atomic Pattern(P) rule: delegates to MatchNode with
// the pattern's match root as goal.
type PatternRule struct{ Pattern *Pattern }

func (r *PatternRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	return MatchNode(r.Pattern.Root(), cand, env, mc)
}

// KindRule is the atomic Kind(id) rule: succeeds iff the candidate's
// kind-id equals the id resolved for Name at compile time.
type KindRule struct {
	Name string
	ID   uint16
}

func (r *KindRule) Match(cand *Node, env *MetaVarEnv, _ byte) (*MetaVarEnv, bool) {
	if cand.KindID() != r.ID {
		return nil, false
	}

	return env.Clone(), true
}

// RegexRule is the atomic Regex(re) rule: matches the candidate's source
// text span against a compiled regular expression.
type RegexRule struct {
	Source string
	Re     *regexp.Regexp
}

func (r *RegexRule) Match(cand *Node, env *MetaVarEnv, _ byte) (*MetaVarEnv, bool) {
	if !r.Re.MatchString(cand.Text()) {
		return nil, false
	}

	return env.Clone(), true
}

// InsideRule succeeds iff some ancestor of cand (subject to stopBy and an
// optional field filter) matches rel.Rule.
type InsideRule struct{ Rel Relation }

func (r *InsideRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	via := cand

	for anc := cand.Parent(); anc != nil; anc = anc.Parent() {
		if fieldOK(anc, via, r.Rel.Field) {
			if next, ok := r.Rel.Rule.Match(anc, env, mc); ok {
				return next, true
			}
		}

		if stop, done := checkStop(anc, r.Rel.StopBy, env, mc); done {
			return stop, stop != nil
		}

		via = anc
	}

	return nil, false
}

// HasRule succeeds iff some descendant of cand (DFS, skipping cand itself,
// subject to stopBy and an optional field filter) matches rel.Rule.
type HasRule struct{ Rel Relation }

func (r *HasRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	count := 0

	for d := range cand.DFS() {
		if d == cand {
			continue
		}

		count++

		if fieldOK(cand, d, r.Rel.Field) {
			if next, ok := r.Rel.Rule.Match(d, env, mc); ok {
				return next, true
			}
		}

		if r.Rel.StopBy.Kind == StopNeighbor && count >= 1 {
			break
		}

		if r.Rel.StopBy.Kind == StopRule {
			if _, ok := r.Rel.StopBy.Rule.Match(d, env, mc); ok {
				break
			}
		}
	}

	return nil, false
}

// PrecedesRule succeeds iff some following sibling of cand (or, with
// End, any node reachable by repeatedly taking the next sibling and
// descending) matches rel.Rule.
type PrecedesRule struct{ Rel Relation }

func (r *PrecedesRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	for sib := cand.NextSibling(); sib != nil; sib = sib.NextSibling() {
		if r.Rel.StopBy.Kind == StopEnd {
			// End widens "following" from the sibling chain to every node
			// reachable under it, in document order.
			for d := range sib.DFS() {
				if next, ok := r.Rel.Rule.Match(d, env, mc); ok {
					return next, true
				}
			}

			continue
		}

		if next, ok := r.Rel.Rule.Match(sib, env, mc); ok {
			return next, true
		}

		if r.Rel.StopBy.Kind == StopNeighbor {
			break
		}

		if r.Rel.StopBy.Kind == StopRule {
			if _, ok := r.Rel.StopBy.Rule.Match(sib, env, mc); ok {
				break
			}
		}
	}

	return nil, false
}

// FollowsRule succeeds iff some preceding sibling of cand matches rel.Rule.
type FollowsRule struct{ Rel Relation }

func (r *FollowsRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	for sib := cand.PrevSibling(); sib != nil; sib = sib.PrevSibling() {
		if next, ok := r.Rel.Rule.Match(sib, env, mc); ok {
			return next, true
		}

		if r.Rel.StopBy.Kind == StopNeighbor {
			break
		}

		if r.Rel.StopBy.Kind == StopRule {
			if _, ok := r.Rel.StopBy.Rule.Match(sib, env, mc); ok {
				break
			}
		}
	}

	return nil, false
}

// fieldOK reports whether field is empty, or ancestor's named child under
// field is exactly via.
func fieldOK(ancestor, via *Node, field string) bool {
	if field == "" {
		return true
	}

	f := ancestor.Field(field)

	return f != nil && f.Equal(via)
}

// checkStop is used by InsideRule's ancestor walk: End always continues,
// Neighbor stops after the first ancestor regardless of match, Rule(stop)
// stops (inclusively) once an ancestor matches the sentinel.
func checkStop(anc *Node, stopBy StopBy, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	switch stopBy.Kind {
	case StopNeighbor:
		return nil, true
	case StopRule:
		if _, ok := stopBy.Rule.Match(anc, env, mc); ok {
			return nil, true
		}

		return nil, false
	case StopEnd:
		return nil, false
	default:
		return nil, false
	}
}

// AllRule succeeds iff every member matches the same candidate, threading
// the env through in order so later members see earlier back-references
// (§9: "the source merges R1's env first").
type AllRule struct{ Rules []Rule }

func (r *AllRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	cur := env

	for _, sub := range r.Rules {
		next, ok := sub.Match(cand, cur, mc)
		if !ok {
			return nil, false
		}

		cur = next
	}

	return cur, true
}

// AnyRule succeeds on the first member that matches; its env is adopted.
type AnyRule struct{ Rules []Rule }

func (r *AnyRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	for _, sub := range r.Rules {
		if next, ok := sub.Match(cand, env, mc); ok {
			return next, true
		}
	}

	return nil, false
}

// NotRule succeeds iff its member fails; any env it produced is discarded.
type NotRule struct{ Rule Rule }

func (r *NotRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	if _, ok := r.Rule.Match(cand, env.Clone(), mc); ok {
		return nil, false
	}

	return env.Clone(), true
}

// MatchesRule resolves a named reference into the utils table (already
// cycle-checked at compile time) and delegates.
type MatchesRule struct {
	Name string
	Rule Rule
}

func (r *MatchesRule) Match(cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	return r.Rule.Match(cand, env, mc)
}

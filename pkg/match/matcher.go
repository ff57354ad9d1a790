package match

// Functions in this file are pure with respect to the env argument: they
// never mutate it in place. On success they return a new env (a clone of
// the input plus whatever this call bound); on failure they return (nil,
// false) and the caller's env is untouched. This makes backtracking
// (the ellipsis greedy scan, and the Any/Not composite rules in rule.go)
// a matter of simply discarding a returned env rather than undoing writes.

// metavarAt decodes goal's text as a metavariable, or returns VarNone if
// goal is not a named leaf (only named leaves can carry a metavariable
// token, §4.D step 1).
func metavarAt(goal *Node, mc byte) MetaVar {
	if !goal.IsNamedLeaf() {
		return MetaVar{Kind: VarNone}
	}

	return ExtractMetaVar(goal.Text(), mc)
}

// MatchNode implements match_node (§4.D): recursively compares goal
// (a pattern node) against candidate, writing captures into env.
func MatchNode(goal, cand *Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	if cand == nil {
		return nil, false
	}

	switch mv := metavarAt(goal, mc); mv.Kind {
	case VarNamed:
		if !cand.IsNamed() {
			return nil, false
		}

		next := env.Clone()
		if !next.Insert(mv.ID, cand) {
			return nil, false
		}

		return next, true
	case VarAnonymous:
		return env.Clone(), true
	case VarNamedEllipsis:
		next := env.Clone()
		next.InsertMulti(mv.ID, []*Node{cand})

		return next, true
	case VarEllipsis:
		return env.Clone(), true
	case VarNone:
		// fall through to structural comparison.
	}

	if goal.KindID() != cand.KindID() {
		return nil, false
	}

	if goal.IsLeaf() {
		if !cand.IsLeaf() {
			return nil, false
		}

		if goal.Text() != cand.Text() {
			return nil, false
		}

		return env.Clone(), true
	}

	return MatchNodes(goal.Children(), cand.Children(), env, mc)
}

// MatchNodes implements match_nodes (§4.D): left-to-right sibling matching
// with ellipsis support.
func MatchNodes(goals, cands []*Node, env *MetaVarEnv, mc byte) (*MetaVarEnv, bool) {
	cur := env.Clone()

	gi, ci := 0, 0
	for gi < len(goals) {
		mv := metavarAt(goals[gi], mc)
		if !mv.IsEllipsis() {
			next, ok := MatchNode(goals[gi], nodeAt(cands, ci), cur, mc)
			if !ok {
				return nil, false
			}

			cur = next
			gi++
			ci++

			continue
		}

		ellipsisIdx := gi
		gi++

		if gi == len(goals) {
			rest := append([]*Node(nil), cands[ci:]...)
			if mv.Kind == VarNamedEllipsis {
				cur.InsertMulti(mv.ID, rest)
			}

			return cur, true
		}

		k := 0
		for gi+k < len(goals) && !goals[gi+k].IsNamed() {
			k++
		}

		if gi+k == len(goals) {
			// Trailing goals after the ellipsis are all anonymous with no
			// further named anchor: fall back to matching them literally
			// against however many candidates remain, after the ellipsis
			// absorbs everything before that tail.
			tailLen := len(goals) - gi
			if len(cands)-ci < tailLen {
				return nil, false
			}

			boundEnd := len(cands) - tailLen
			if mv.Kind == VarNamedEllipsis {
				cur.InsertMulti(mv.ID, append([]*Node(nil), cands[ci:boundEnd]...))
			}

			return MatchNodes(goals[gi:], cands[boundEnd:], cur, mc)
		}

		next := goals[gi+k]
		if metavarAt(next, mc).IsEllipsis() {
			// Two ellipses at the same level: consume exactly one candidate
			// as the separator between them (§9 open question, preserved).
			if ci >= len(cands) {
				return nil, false
			}

			if mv.Kind == VarNamedEllipsis {
				cur.InsertMulti(mv.ID, nil)
			}

			ci++
			gi = ellipsisIdx + 1

			continue
		}

		start := ci

		matchedEnv, matchedEnd, ok := scanEllipsis(goals, gi, k, cands, ci, cur, mc)
		if !ok {
			return nil, false
		}

		if mv.Kind == VarNamedEllipsis {
			matchedEnv.InsertMulti(mv.ID, append([]*Node(nil), cands[start:matchedEnd-k]...))
		}

		return matchedEnv, true
	}

	if ci != len(cands) {
		return nil, false
	}

	return cur, true
}

// scanEllipsis performs the greedy scan: it walks candidates starting at
// ci looking for a position where goals[anchorIdx:] (resumed k positions
// earlier, at the first of the skipped anonymous tokens) matches the
// remaining candidate tail. It returns the committed env and the candidate
// index the anchor's match consumed up through.
func scanEllipsis(goals []*Node, anchorIdx, k int, cands []*Node, ci int, env *MetaVarEnv, mc byte) (*MetaVarEnv, int, bool) {
	resumeGoalIdx := anchorIdx - k

	for idx := ci; idx <= len(cands); idx++ {
		boundEnd := idx - k
		if boundEnd < ci {
			continue
		}

		trial, ok := MatchNodes(goals[resumeGoalIdx:], cands[boundEnd:], env, mc)
		if ok {
			return trial, idx, true
		}
	}

	return nil, 0, false
}

// nodeAt returns cands[i], or nil if i is out of range (MatchNode then
// fails cleanly instead of panicking).
func nodeAt(cands []*Node, i int) *Node {
	if i < 0 || i >= len(cands) {
		return nil
	}

	return cands[i]
}

// MatchEnd mirrors MatchNode but only reports the candidate byte offset
// consumed by a successful match, without requiring or writing an env
// (§4.D: "used by the relational engine to know how far a sub-match
// extended within a parent when no env is required").
func MatchEnd(goal, cand *Node, mc byte) (end int, ok bool) {
	env, matched := MatchNode(goal, cand, NewMetaVarEnv(), mc)
	if !matched {
		return 0, false
	}

	_ = env

	return cand.Range().EndByte, true
}

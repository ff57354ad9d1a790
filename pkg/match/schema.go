package match

import (
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/codegrove/structgrep/pkg/lang"
)

// RuleCore is the full compiled rule (§3, §4.H): the rule itself, its
// per-variable constraints, the resolved utils table it may reference, and
// an optional fixer. It is built once per document and is read-only
// thereafter — safe to share across concurrent match invocations so long as
// each invocation owns its own MetaVarEnv and document tree (§5).
type RuleCore struct {
	Language    *lang.Language
	Rule        Rule
	Constraints map[string]MetaVarMatcher
	Utils       map[string]Rule
	Transforms  map[string]Transform
	Fix         *Fixer
}

// utilLookup resolves a name referenced by a matches: node into a Rule. It
// is threaded through compilation so that, during utils resolution, a
// forward reference to another not-yet-compiled util recurses instead of
// failing a premature map lookup.
type utilLookup func(name string) (Rule, error)

var allowedRuleKeys = map[string]bool{
	"pattern": true, "kind": true, "regex": true,
	"inside": true, "has": true, "precedes": true, "follows": true,
	"all": true, "any": true, "not": true, "matches": true,
}

// Compile deserializes a rule document (§6 "Rule document format") for
// language l and produces a RuleCore, per the two-phase compile of §4.H:
// utils are resolved (with cycle detection) before the top rule, which may
// reference them, is compiled.
func Compile(l *lang.Language, source []byte) (*RuleCore, error) {
	if err := validateSchema(source); err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(source, &root); err != nil {
		return nil, newCompileError(KindSchema, "parse rule document: %w", err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, newCompileError(KindSchema, "%w: empty document", ErrNoRuleField)
		}

		doc = doc.Content[0]
	}

	var ruleNode, constraintsNode, utilsNode, fixNode, transformNode *yaml.Node

	for _, p := range mappingPairs(doc) {
		switch p.key.Value {
		case "rule":
			ruleNode = p.val
		case "constraints":
			constraintsNode = p.val
		case "utils":
			utilsNode = p.val
		case "fix":
			fixNode = p.val
		case "transform":
			transformNode = p.val
		default:
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}
	}

	if ruleNode == nil {
		return nil, newCompileError(KindSchema, "%w: missing top-level \"rule\"", ErrNoRuleField)
	}

	resolvedUtils, err := resolveUtils(l, utilsNode)
	if err != nil {
		return nil, err
	}

	lookup := func(name string) (Rule, error) {
		r, ok := resolvedUtils[name]
		if !ok {
			return nil, newCompileError(KindReference, "%w: %q", ErrUnresolvedUtil, name)
		}

		return r, nil
	}

	rule, err := compileRuleObject(l, ruleNode, lookup)
	if err != nil {
		return nil, err
	}

	constraints, err := compileConstraints(l, constraintsNode)
	if err != nil {
		return nil, err
	}

	transforms, err := compileTransforms(l, transformNode)
	if err != nil {
		return nil, err
	}

	var fix *Fixer
	if fixNode != nil {
		fix, err = compileFixer(l, fixNode, lookup)
		if err != nil {
			return nil, err
		}
	}

	return &RuleCore{
		Language:    l,
		Rule:        rule,
		Constraints: constraints,
		Utils:       resolvedUtils,
		Transforms:  transforms,
		Fix:         fix,
	}, nil
}

// resolveUtils compiles every entry of a utils: map, resolving forward
// references between entries and rejecting cycles (§4.H phase 1).
func resolveUtils(l *lang.Language, node *yaml.Node) (map[string]Rule, error) {
	resolved := make(map[string]Rule)
	if node == nil {
		return resolved, nil
	}

	raw := make(map[string]*yaml.Node)
	for _, p := range mappingPairs(node) {
		raw[p.key.Value] = p.val
	}

	inProgress := make(map[string]bool)

	var resolve func(name string) (Rule, error)

	lookup := utilLookup(func(name string) (Rule, error) { return resolve(name) })

	resolve = func(name string) (Rule, error) {
		if r, ok := resolved[name]; ok {
			return r, nil
		}

		if inProgress[name] {
			return nil, newCompileError(KindReference, "%w: %q", ErrCyclicUtil, name)
		}

		n, ok := raw[name]
		if !ok {
			return nil, newCompileError(KindReference, "%w: %q", ErrUnresolvedUtil, name)
		}

		inProgress[name] = true

		r, err := compileRuleObject(l, n, lookup)

		delete(inProgress, name)

		if err != nil {
			return nil, err
		}

		resolved[name] = r

		return r, nil
	}

	for name := range raw {
		if _, err := resolve(name); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}

// pair is one key/value entry of a YAML mapping node.
type pair struct{ key, val *yaml.Node }

// mappingPairs returns node's key/value pairs. A non-mapping node yields no
// pairs; callers that require a mapping check the result's emptiness
// themselves via the caller-specific "no recognized field" error.
func mappingPairs(node *yaml.Node) []pair {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	out := make([]pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, pair{key: node.Content[i], val: node.Content[i+1]})
	}

	return out
}

// compileRuleObject compiles one rule node: exactly one of the recognized
// rule keys (§4.H, §6), any other key rejected.
func compileRuleObject(l *lang.Language, node *yaml.Node, utils utilLookup) (Rule, error) {
	var foundKey string

	var foundVal *yaml.Node

	for _, p := range mappingPairs(node) {
		if !allowedRuleKeys[p.key.Value] {
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}

		if foundKey != "" {
			return nil, newCompileError(KindSchema, "%w: %q and %q", ErrAmbiguousRuleField, foundKey, p.key.Value)
		}

		foundKey, foundVal = p.key.Value, p.val
	}

	if foundKey == "" {
		return nil, newCompileError(KindSchema, "%w", ErrNoRuleField)
	}

	switch foundKey {
	case "pattern":
		return compilePatternRule(l, foundVal)
	case "kind":
		return compileKindRule(l, foundVal)
	case "regex":
		return compileRegexRule(foundVal)
	case "inside", "has", "precedes", "follows":
		return compileRelationalRule(l, foundKey, foundVal, utils)
	case "all":
		return compileAllAny(l, foundVal, utils, true)
	case "any":
		return compileAllAny(l, foundVal, utils, false)
	case "not":
		inner, err := compileRuleObject(l, foundVal, utils)
		if err != nil {
			return nil, err
		}

		return &NotRule{Rule: inner}, nil
	case "matches":
		rule, err := utils(foundVal.Value)
		if err != nil {
			return nil, err
		}

		return &MatchesRule{Name: foundVal.Value, Rule: rule}, nil
	default:
		return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, foundKey)
	}
}

func compilePatternRule(l *lang.Language, val *yaml.Node) (Rule, error) {
	if val.Kind == yaml.ScalarNode {
		p, err := CompilePattern(l, val.Value)
		if err != nil {
			return nil, err
		}

		return &PatternRule{Pattern: p}, nil
	}

	var context, selector string

	for _, p := range mappingPairs(val) {
		switch p.key.Value {
		case "context":
			context = p.val.Value
		case "selector":
			selector = p.val.Value
		default:
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}
	}

	p, err := CompileContextualPattern(l, context, selector)
	if err != nil {
		return nil, err
	}

	return &PatternRule{Pattern: p}, nil
}

func compileKindRule(l *lang.Language, val *yaml.Node) (Rule, error) {
	id, ok := l.KindID(val.Value)
	if !ok {
		return nil, newCompileError(KindKind, "%w: %q", ErrUnknownKind, val.Value)
	}

	return &KindRule{Name: val.Value, ID: id}, nil
}

func compileRegexRule(val *yaml.Node) (Rule, error) {
	re, err := regexp.Compile(val.Value)
	if err != nil {
		return nil, newCompileError(KindRegex, "%w: %v", ErrInvalidRegex, err)
	}

	return &RegexRule{Source: val.Value, Re: re}, nil
}

// compileRelationalRule parses an inside/has/precedes/follows node: its
// stopBy and field siblings, plus the inlined rule fields that select what
// must match (§6: "inside: { rule..., stopBy:..., field: optional }").
func compileRelationalRule(l *lang.Language, key string, val *yaml.Node, utils utilLookup) (Rule, error) {
	rel, err := parseRelation(l, val, utils)
	if err != nil {
		return nil, err
	}

	switch key {
	case "inside":
		return &InsideRule{Rel: rel}, nil
	case "has":
		return &HasRule{Rel: rel}, nil
	case "precedes":
		return &PrecedesRule{Rel: rel}, nil
	case "follows":
		return &FollowsRule{Rel: rel}, nil
	default:
		return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, key)
	}
}

func parseRelation(l *lang.Language, node *yaml.Node, utils utilLookup) (Relation, error) {
	stopBy := StopBy{Kind: StopEnd}
	field := ""

	var remaining []*yaml.Node

	for _, p := range mappingPairs(node) {
		switch p.key.Value {
		case "stopBy", "stop_by":
			sb, err := parseStopBy(l, p.val, utils)
			if err != nil {
				return Relation{}, err
			}

			stopBy = sb
		case "field":
			field = p.val.Value
		default:
			remaining = append(remaining, p.key, p.val)
		}
	}

	ruleNode := &yaml.Node{Kind: yaml.MappingNode, Content: remaining}

	rule, err := compileRuleObject(l, ruleNode, utils)
	if err != nil {
		return Relation{}, err
	}

	return Relation{Rule: rule, StopBy: stopBy, Field: field}, nil
}

func parseStopBy(l *lang.Language, val *yaml.Node, utils utilLookup) (StopBy, error) {
	switch val.Kind {
	case yaml.ScalarNode:
		switch val.Value {
		case "neighbor":
			return StopBy{Kind: StopNeighbor}, nil
		case "end":
			return StopBy{Kind: StopEnd}, nil
		default:
			return StopBy{}, newCompileError(KindSchema, "%w: %q", ErrInvalidStopBy, val.Value)
		}
	case yaml.MappingNode:
		rule, err := compileRuleObject(l, val, utils)
		if err != nil {
			return StopBy{}, err
		}

		return StopBy{Kind: StopRule, Rule: rule}, nil
	default:
		return StopBy{}, newCompileError(KindSchema, "%w", ErrInvalidStopBy)
	}
}

func compileAllAny(l *lang.Language, val *yaml.Node, utils utilLookup, all bool) (Rule, error) {
	if val.Kind != yaml.SequenceNode {
		return nil, newCompileError(KindSchema, "%w: expected a sequence", ErrUnknownRuleField)
	}

	rules := make([]Rule, 0, len(val.Content))

	for _, item := range val.Content {
		r, err := compileRuleObject(l, item, utils)
		if err != nil {
			return nil, err
		}

		rules = append(rules, r)
	}

	if all {
		return &AllRule{Rules: rules}, nil
	}

	return &AnyRule{Rules: rules}, nil
}

// compileConstraints compiles a constraints: map (§4.F, §6): each entry
// names a metavariable id and gives a single regex/pattern/kind filter.
func compileConstraints(l *lang.Language, node *yaml.Node) (map[string]MetaVarMatcher, error) {
	out := make(map[string]MetaVarMatcher)
	if node == nil {
		return out, nil
	}

	for _, p := range mappingPairs(node) {
		m, err := compileConstraint(l, p.val)
		if err != nil {
			return nil, err
		}

		out[p.key.Value] = m
	}

	return out, nil
}

func compileConstraint(l *lang.Language, node *yaml.Node) (MetaVarMatcher, error) {
	var foundKey string

	var foundVal *yaml.Node

	for _, p := range mappingPairs(node) {
		switch p.key.Value {
		case "regex", "pattern", "kind":
			if foundKey != "" {
				return nil, newCompileError(KindSchema, "%w: %q and %q", ErrAmbiguousRuleField, foundKey, p.key.Value)
			}

			foundKey, foundVal = p.key.Value, p.val
		default:
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}
	}

	switch foundKey {
	case "regex":
		re, err := regexp.Compile(foundVal.Value)
		if err != nil {
			return nil, newCompileError(KindRegex, "%w: %v", ErrInvalidRegex, err)
		}

		return &RegexConstraint{Source: foundVal.Value, Re: re}, nil
	case "pattern":
		p, err := CompilePattern(l, foundVal.Value)
		if err != nil {
			return nil, err
		}

		return &PatternConstraint{Pattern: p}, nil
	case "kind":
		id, ok := l.KindID(foundVal.Value)
		if !ok {
			return nil, newCompileError(KindKind, "%w: %q", ErrUnknownKind, foundVal.Value)
		}

		return &KindConstraint{Name: foundVal.Value, ID: id}, nil
	default:
		return nil, newCompileError(KindSchema, "%w", ErrNoRuleField)
	}
}

// compileTransforms compiles a transform: map (EXPANSION D, §6): each entry
// names a target id and gives exactly one of replace/substring/convert,
// each naming the metavariable id it draws its source text from.
func compileTransforms(l *lang.Language, node *yaml.Node) (map[string]Transform, error) {
	out := make(map[string]Transform)
	if node == nil {
		return out, nil
	}

	for _, p := range mappingPairs(node) {
		t, err := compileTransform(l, p.val)
		if err != nil {
			return nil, err
		}

		out[p.key.Value] = t
	}

	return out, nil
}

var allowedTransformKeys = map[string]bool{"replace": true, "substring": true, "convert": true}

func compileTransform(l *lang.Language, node *yaml.Node) (Transform, error) {
	var foundKey string

	var foundVal *yaml.Node

	for _, p := range mappingPairs(node) {
		if !allowedTransformKeys[p.key.Value] {
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}

		if foundKey != "" {
			return nil, newCompileError(KindSchema, "%w: %q and %q", ErrAmbiguousRuleField, foundKey, p.key.Value)
		}

		foundKey, foundVal = p.key.Value, p.val
	}

	switch foundKey {
	case "replace":
		return compileReplaceTransform(l, foundVal)
	case "substring":
		return compileSubstringTransform(l, foundVal)
	case "convert":
		return compileConvertTransform(l, foundVal)
	default:
		return nil, newCompileError(KindSchema, "%w", ErrNoRuleField)
	}
}

func compileReplaceTransform(l *lang.Language, node *yaml.Node) (Transform, error) {
	var source, pattern, by string

	for _, p := range mappingPairs(node) {
		switch p.key.Value {
		case "source":
			source = p.val.Value
		case "replace":
			pattern = p.val.Value
		case "by":
			by = p.val.Value
		default:
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, newCompileError(KindRegex, "%w: %v", ErrInvalidRegex, err)
	}

	return &ReplaceTransform{Source: trimMetaVarSigil(l, source), Re: re, By: by}, nil
}

func compileSubstringTransform(l *lang.Language, node *yaml.Node) (Transform, error) {
	t := &SubstringTransform{}

	for _, p := range mappingPairs(node) {
		switch p.key.Value {
		case "source":
			t.Source = trimMetaVarSigil(l, p.val.Value)
		case "startChar", "start_char":
			t.StartChar = yamlInt(p.val)
		case "endChar", "end_char":
			t.EndChar = yamlInt(p.val)
			t.HasEndChar = true
		default:
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}
	}

	return t, nil
}

func compileConvertTransform(l *lang.Language, node *yaml.Node) (Transform, error) {
	t := &ConvertTransform{}

	for _, p := range mappingPairs(node) {
		switch p.key.Value {
		case "source":
			t.Source = trimMetaVarSigil(l, p.val.Value)
		case "toCase", "to_case":
			t.Case = ConvertCase(p.val.Value)
		default:
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}
	}

	switch t.Case {
	case CaseUpper, CaseLower, CaseCapitalize:
		return t, nil
	default:
		return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, string(t.Case))
	}
}

// trimMetaVarSigil strips a leading metavariable sigil from a transform's
// source reference: both "$X" and "X" name the same captured id.
func trimMetaVarSigil(l *lang.Language, s string) string {
	if len(s) > 0 && s[0] == l.MetaChar() {
		return s[1:]
	}

	return s
}

func yamlInt(node *yaml.Node) int {
	var v int

	_ = node.Decode(&v)

	return v
}

// compileFixer compiles a fix: node, either a plain template string or
// {template, expandStart?, expandEnd?} (§4.G, §6).
func compileFixer(l *lang.Language, node *yaml.Node, utils utilLookup) (*Fixer, error) {
	if node.Kind == yaml.ScalarNode {
		tmpl, err := CompilePattern(l, node.Value)
		if err != nil {
			return nil, newCompileError(KindTemplate, "%w: %v", ErrInvalidTemplate, err)
		}

		return &Fixer{Template: tmpl}, nil
	}

	var template string

	var expandStart, expandEnd *Relation

	for _, p := range mappingPairs(node) {
		switch p.key.Value {
		case "template":
			template = p.val.Value
		case "expandStart", "expand_start":
			rel, err := parseRelation(l, p.val, utils)
			if err != nil {
				return nil, err
			}

			expandStart = &rel
		case "expandEnd", "expand_end":
			rel, err := parseRelation(l, p.val, utils)
			if err != nil {
				return nil, err
			}

			expandEnd = &rel
		default:
			return nil, newCompileError(KindSchema, "%w: %q", ErrUnknownRuleField, p.key.Value)
		}
	}

	tmpl, err := CompilePattern(l, template)
	if err != nil {
		return nil, newCompileError(KindTemplate, "%w: %v", ErrInvalidTemplate, err)
	}

	return &Fixer{Template: tmpl, ExpandStart: expandStart, ExpandEnd: expandEnd}, nil
}

package match

import (
	"regexp"
	"strings"
)

// Transform is the EXPANSION D post-match, pre-fix projection: it derives a
// new string binding from an already-captured metavariable, before the
// fixer template is substituted. It never participates in matching itself.
type Transform interface {
	Apply(env *MetaVarEnv) (string, bool)
}

// sourceText returns the text bound to id, whether that binding came from a
// tree node (the common case) or from an earlier transform in the same map.
func sourceText(env *MetaVarEnv, id string) (string, bool) {
	if n, ok := env.Get(id); ok {
		return n.Text(), true
	}

	return env.GetString(id)
}

// ReplaceTransform is transform.replace: substitute every match of Re in
// Source's text with By, using Go's regexp expansion syntax for capture
// group references (e.g. "$1").
type ReplaceTransform struct {
	Source string
	Re     *regexp.Regexp
	By     string
}

func (t *ReplaceTransform) Apply(env *MetaVarEnv) (string, bool) {
	text, ok := sourceText(env, t.Source)
	if !ok {
		return "", false
	}

	return t.Re.ReplaceAllString(text, t.By), true
}

// SubstringTransform is transform.substring: a byte-offset slice of
// Source's text, with Python-style negative offsets counting from the end.
type SubstringTransform struct {
	Source     string
	StartChar  int
	EndChar    int
	HasEndChar bool
}

func (t *SubstringTransform) Apply(env *MetaVarEnv) (string, bool) {
	text, ok := sourceText(env, t.Source)
	if !ok {
		return "", false
	}

	r := []rune(text)
	n := len(r)

	start := resolveOffset(t.StartChar, n)

	end := n
	if t.HasEndChar {
		end = resolveOffset(t.EndChar, n)
	}

	if start < 0 {
		start = 0
	}

	if end > n {
		end = n
	}

	if start >= end {
		return "", true
	}

	return string(r[start:end]), true
}

func resolveOffset(offset, n int) int {
	if offset < 0 {
		return n + offset
	}

	return offset
}

// ConvertCase names a text case transform.convert may apply.
type ConvertCase string

const (
	CaseUpper      ConvertCase = "upperCase"
	CaseLower      ConvertCase = "lowerCase"
	CaseCapitalize ConvertCase = "capitalize"
)

// ConvertTransform is transform.convert: a fixed-vocabulary case change
// applied to Source's text.
type ConvertTransform struct {
	Source string
	Case   ConvertCase
}

func (t *ConvertTransform) Apply(env *MetaVarEnv) (string, bool) {
	text, ok := sourceText(env, t.Source)
	if !ok {
		return "", false
	}

	switch t.Case {
	case CaseUpper:
		return strings.ToUpper(text), true
	case CaseLower:
		return strings.ToLower(text), true
	case CaseCapitalize:
		if text == "" {
			return text, true
		}

		r := []rune(text)

		return strings.ToUpper(string(r[0])) + string(r[1:]), true
	default:
		return text, true
	}
}

// ApplyTransforms evaluates every entry in transforms against env, in map
// iteration order retried until a fixed point, and inserts each result as a
// string binding keyed by its target id. A transform whose source is itself
// the output of another transform resolves once that source is bound;
// transforms are silently skipped (never bound) if their source never
// becomes available, mirroring CheckConstraints' no-op-on-missing-capture
// behavior for an uncaptured id.
func ApplyTransforms(transforms map[string]Transform, env *MetaVarEnv) {
	pending := make(map[string]Transform, len(transforms))
	for id, t := range transforms {
		pending[id] = t
	}

	for len(pending) > 0 {
		progressed := false

		for id, t := range pending {
			value, ok := t.Apply(env)
			if !ok {
				continue
			}

			env.InsertString(id, value)
			delete(pending, id)

			progressed = true
		}

		if !progressed {
			return
		}
	}
}

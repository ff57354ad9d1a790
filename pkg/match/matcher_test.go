package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/match"
)

func matchSource(t *testing.T, lang string, pattern, source string) (*match.MetaVarEnv, bool) {
	t.Helper()

	l := testLanguage(t, lang)

	p, err := match.CompilePattern(l, pattern)
	require.NoError(t, err)

	doc, err := match.Parse(l, []byte(source))
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	mc := l.MetaChar()

	for n := range doc.Root().DFS() {
		if env, ok := match.MatchNode(p.Root(), n, match.NewMetaVarEnv(), mc); ok {
			return env, true
		}
	}

	return nil, false
}

func TestBackReference(t *testing.T) {
	_, ok := matchSource(t, "javascript", "f($A, $A)", "f(x, x)")
	assert.True(t, ok)

	_, ok = matchSource(t, "javascript", "f($A, $A)", "f(x, y)")
	assert.False(t, ok)
}

func TestEllipsisTotality(t *testing.T) {
	for _, src := range []string{"f()", "f(a)", "f(a, b)", "f(a, b, c)"} {
		_, ok := matchSource(t, "javascript", "f($$$)", src)
		assert.True(t, ok, "expected f($$$) to match %q", src)
	}
}

func TestPositionalEllipsis(t *testing.T) {
	_, ok := matchSource(t, "javascript", "f($$$, c)", "f(a, b, c)")
	assert.True(t, ok)

	_, ok = matchSource(t, "javascript", "f($$$, c)", "f(a, b, d)")
	assert.False(t, ok)

	_, ok = matchSource(t, "javascript", "f(a, $$$)", "f(a, b, c)")
	assert.True(t, ok)

	_, ok = matchSource(t, "javascript", "f(a, $$$)", "f(z, b, c)")
	assert.False(t, ok)
}

func TestAnchorEllipsisNonMatch(t *testing.T) {
	_, ok := matchSource(t, "javascript", "f($$$, a, b, c)", "f(b, c)")
	assert.False(t, ok)
}

func TestAnonymousMetaVarMatchesAnything(t *testing.T) {
	_, ok := matchSource(t, "javascript", "f($_)", "f(anything)")
	assert.True(t, ok)
}

func TestSelfApplicationBackReference(t *testing.T) {
	_, ok := matchSource(t, "javascript", "$A($A)", "f(f)")
	assert.True(t, ok)

	_, ok = matchSource(t, "javascript", "$A($A)", "f(g)")
	assert.False(t, ok)
}

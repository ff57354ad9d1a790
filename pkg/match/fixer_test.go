package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/match"
)

func TestFixRoundTrip(t *testing.T) {
	l := testLanguage(t, "javascript")

	p, err := match.CompilePattern(l, "var $A = $B")
	require.NoError(t, err)

	source := []byte("var a = 1;")

	doc, err := match.Parse(l, source)
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	env, ok := match.MatchNode(p.Root(), doc.Root().Child(0), match.NewMetaVarEnv(), l.MetaChar())

	// The top-level node is the statement itself for this snippet shape; if
	// it is not, fall back to a full-document scan as the other tests do.
	if !ok {
		for n := range doc.Root().DFS() {
			if e, matched := match.MatchNode(p.Root(), n, match.NewMetaVarEnv(), l.MetaChar()); matched {
				env, ok = e, true

				break
			}
		}
	}

	require.True(t, ok)

	sameTemplate, err := match.CompilePattern(l, "var $A = $B")
	require.NoError(t, err)

	fixer := &match.Fixer{Template: sameTemplate}

	var matched *match.Node

	for n := range doc.Root().DFS() {
		if n.Text() == "var a = 1;" {
			matched = n

			break
		}
	}

	require.NotNil(t, matched)

	edit := fixer.Apply(matched, env, l.MetaChar())

	rebuilt := string(source[:edit.Position]) + string(edit.InsertedText) + string(source[edit.Position+edit.DeletedLength:])
	assert.Equal(t, string(source), rebuilt)
}

func TestReplaceMetaVarInString(t *testing.T) {
	l := testLanguage(t, "javascript")

	doc, err := match.Parse(l, []byte("f(hello)"))
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	var arg *match.Node

	for n := range doc.Root().DFS() {
		if n.Kind() == "identifier" && n.Text() == "hello" {
			arg = n
		}
	}

	require.NotNil(t, arg)

	env := match.NewMetaVarEnv()
	require.True(t, env.Insert("A", arg))

	out := match.ReplaceMetaVarInString("value: $A!", '$', env)
	assert.Equal(t, "value: hello!", out)

	out = match.ReplaceMetaVarInString("value: $UNSET!", '$', env)
	assert.Equal(t, "value: $UNSET!", out)
}

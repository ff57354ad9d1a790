package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/match"
)

func TestMetaVarEnvInsertBackReference(t *testing.T) {
	l := testLanguage(t, "javascript")

	doc, err := match.Parse(l, []byte("f(x, x, y)"))
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	args := findArgs(t, doc)
	require.Len(t, args, 3)

	env := match.NewMetaVarEnv()
	require.True(t, env.Insert("A", args[0]))
	require.True(t, env.Insert("A", args[1]), "same text re-inserted under the same id must succeed")
	assert.False(t, env.Insert("A", args[2]), "different text re-inserted under the same id must fail")
}

func TestMetaVarEnvCloneIsIndependent(t *testing.T) {
	l := testLanguage(t, "javascript")

	doc, err := match.Parse(l, []byte("f(x, y)"))
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	args := findArgs(t, doc)

	env := match.NewMetaVarEnv()
	require.True(t, env.Insert("A", args[0]))

	clone := env.Clone()
	require.True(t, clone.Insert("B", args[1]))

	_, ok := env.Get("B")
	assert.False(t, ok, "insert into a clone must not leak back into the original")
}

// findArgs returns the identifiers in doc that sit directly in a call's
// argument list (the callee is not included), used as distinct nodes to
// exercise env back-reference semantics.
func findArgs(t *testing.T, doc *match.Document) []*match.Node {
	t.Helper()

	var out []*match.Node

	for n := range doc.Root().DFS() {
		if n.Kind() == "identifier" && n.Parent() != nil && n.Parent().Kind() == "arguments" {
			out = append(out, n)
		}
	}

	return out
}

package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/match"
)

func TestRewriteEditsAreDisjointAndSorted(t *testing.T) {
	l := testLanguage(t, "javascript")

	rc, err := match.Compile(l, []byte(`
rule:
  pattern: "var $A = $B"
fix: "let $A = $B"
`))
	require.NoError(t, err)

	doc, err := match.Parse(l, []byte("var a = 1; var b = 2; var c = 3;"))
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	edits, err := rc.Rewrite(doc)
	require.NoError(t, err)
	require.Len(t, edits, 3)

	for i := 1; i < len(edits); i++ {
		prevEnd := edits[i-1].Position + edits[i-1].DeletedLength
		assert.LessOrEqual(t, prevEnd, edits[i].Position, "edits must not overlap")
		assert.Less(t, edits[i-1].Position, edits[i].Position, "edits must be sorted by position")
	}
}

func TestRewriteWithoutFixerErrors(t *testing.T) {
	l := testLanguage(t, "javascript")

	rc, err := match.Compile(l, []byte(`
rule:
  pattern: "x"
`))
	require.NoError(t, err)

	doc, err := match.Parse(l, []byte("x;"))
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	_, err = rc.Rewrite(doc)
	assert.ErrorIs(t, err, match.ErrNoFixer)
}

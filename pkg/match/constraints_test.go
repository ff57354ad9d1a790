package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/match"
)

func TestConstraintFiltering(t *testing.T) {
	l := testLanguage(t, "javascript")

	rc, err := match.Compile(l, []byte(`
rule:
  pattern: "$A"
constraints:
  A: { regex: "^foo" }
`))
	require.NoError(t, err)

	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{name: "matching prefix", source: "fooBar;", want: true},
		{name: "non-matching prefix", source: "barBaz;", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := match.Parse(l, []byte(tt.source))
			require.NoError(t, err)

			t.Cleanup(doc.Close)

			matches := rc.FindAll(doc)
			if tt.want {
				assert.NotEmpty(t, matches)
			} else {
				assert.Empty(t, matches)
			}
		})
	}
}

func TestCheckConstraintsSkipsUnboundID(t *testing.T) {
	l := testLanguage(t, "javascript")

	p, err := match.CompilePattern(l, "x")
	require.NoError(t, err)

	constraints := map[string]match.MetaVarMatcher{
		"UNSET": &match.PatternConstraint{Pattern: p},
	}

	ok := match.CheckConstraints(constraints, match.NewMetaVarEnv(), l.MetaChar())
	assert.True(t, ok)
}

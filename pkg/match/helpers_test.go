package match_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/lang"
)

func testLanguage(t *testing.T, name string) *lang.Language {
	t.Helper()

	l, err := lang.NewRegistry().Get(name)
	require.NoError(t, err)

	return l
}

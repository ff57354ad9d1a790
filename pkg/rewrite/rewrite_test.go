package rewrite_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/match"
	"github.com/codegrove/structgrep/pkg/rewrite"
)

func TestApply_SingleEdit(t *testing.T) {
	t.Parallel()

	source := "var x = 1;"
	edits := []match.Edit{
		{Position: 0, DeletedLength: 3, InsertedText: []byte("let")},
	}

	assert.Equal(t, "let x = 1;", rewrite.Apply(source, edits))
}

func TestApply_MultipleNonOverlappingEdits(t *testing.T) {
	t.Parallel()

	source := "fmt.Println(a); fmt.Println(b);"
	edits := []match.Edit{
		{Position: 0, DeletedLength: 14, InsertedText: []byte("log.Info(a)")},
		{Position: 16, DeletedLength: 14, InsertedText: []byte("log.Info(b)")},
	}

	assert.Equal(t, "log.Info(a); log.Info(b);", rewrite.Apply(source, edits))
}

func TestApply_NoEdits(t *testing.T) {
	t.Parallel()

	source := "unchanged"
	assert.Equal(t, source, rewrite.Apply(source, nil))
}

func TestWriteDiff_ColorsInsertAndDelete(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	upper := func(s string) string { return strings.ToUpper(s) }

	err := rewrite.WriteDiff(&buf, "var x = 1", "let x = 1", upper, upper)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, " x = 1")
	assert.Contains(t, out, strings.ToUpper("var"))
	assert.Contains(t, out, strings.ToUpper("let"))
}

func TestWriteDiff_NoColorizer(t *testing.T) {
	t.Parallel()

	var buf strings.Builder

	err := rewrite.WriteDiff(&buf, "same", "same", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "same\n", buf.String())
}

// Package rewrite turns a RuleCore's edit list into rewritten source text
// and a human-readable diff, shared by the CLI's rewrite command and the MCP
// server's structgrep_rewrite tool.
package rewrite

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codegrove/structgrep/pkg/match"
)

// Apply applies a sorted, non-overlapping edit list to source, producing the
// rewritten text. Mirrors the contract match.Rewrite documents: edits are
// non-overlapping and sorted by position.
func Apply(source string, edits []match.Edit) string {
	var b strings.Builder

	cursor := 0

	for _, e := range edits {
		b.WriteString(source[cursor:e.Position])
		b.Write(e.InsertedText)

		cursor = e.Position + e.DeletedLength
	}

	b.WriteString(source[cursor:])

	return b.String()
}

// Colorizer applies ANSI coloring to a diff segment's text before it is
// written. Passing nil colors skip writes plain text.
type Colorizer func(text string) string

// WriteDiff renders a semantic diff between before and after to writer,
// applying insColor/delColor to inserted/deleted spans. Equal spans are
// written unstyled.
func WriteDiff(writer io.Writer, before, after string, insColor, delColor Colorizer) error {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	for _, d := range diffs {
		text := d.Text

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			if insColor != nil {
				text = insColor(text)
			}
		case diffmatchpatch.DiffDelete:
			if delColor != nil {
				text = delColor(text)
			}
		case diffmatchpatch.DiffEqual:
		}

		if _, err := io.WriteString(writer, text); err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	if _, err := io.WriteString(writer, "\n"); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}

	return nil
}

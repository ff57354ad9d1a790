package walk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/internal/walk"
	"github.com/codegrove/structgrep/pkg/lang"
)

func TestDir_ClassifiesByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "script.py", "def main():\n    pass\n")
	writeFile(t, dir, "notes.txt", "just some notes, no grammar for this")

	registry := lang.NewRegistry()

	files, err := walk.Dir(dir, registry, "")
	require.NoError(t, err)

	byPath := make(map[string]*walk.File, len(files))
	for i := range files {
		byPath[files[i].Path] = &files[i]
	}

	require.Contains(t, byPath, "main.go")
	assert.Equal(t, "go", byPath["main.go"].Language.Name())

	require.Contains(t, byPath, "script.py")
	assert.Equal(t, "python", byPath["script.py"].Language.Name())

	assert.NotContains(t, byPath, "notes.txt")
}

func TestDir_SkipsHiddenDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, filepath.Join(".git", "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, dir, "main.go", "package main\n")

	registry := lang.NewRegistry()

	files, err := walk.Dir(dir, registry, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Path)
}

func TestDir_ForcedLanguageSkipsDetection(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "config", "rule:\n  pattern: \"$A\"\n")

	registry := lang.NewRegistry()

	files, err := walk.Dir(dir, registry, "yaml")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "yaml", files[0].Language.Name())
}

func TestDir_UnknownForcedLanguageIsSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.go", "package main\n")

	registry := lang.NewRegistry()

	files, err := walk.Dir(dir, registry, "cobol")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// Package walk discovers source files to run rules over, either from a
// working directory or from a tree inside a git repository, and classifies
// each by language so the caller can hand it to the matching language's
// grammar.
package walk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/src-d/enry/v2"

	"github.com/codegrove/structgrep/pkg/cache"
	"github.com/codegrove/structgrep/pkg/gitlib"
	"github.com/codegrove/structgrep/pkg/lang"
)

// File is one discovered source file: its path (relative to the scan root),
// its detected language, and its content.
type File struct {
	Path     string
	Language *lang.Language
	Content  []byte
}

// enryToLanguage maps enry's language names to this module's registry
// identifiers. Languages enry can detect but this module has no grammar for
// are silently skipped by Dir and Tree.
var enryToLanguage = map[string]string{
	"C":          "c",
	"C++":        "cpp",
	"Go":         "go",
	"Java":       "java",
	"JavaScript": "javascript",
	"JSON":       "json",
	"Python":     "python",
	"Rust":       "rust",
	"TSX":        "tsx",
	"TypeScript": "typescript",
	"YAML":       "yaml",
}

// isHiddenDir reports whether name should be excluded from a recursive scan
// (version control and similar metadata directories).
func isHiddenDir(name string) bool {
	return len(name) > 1 && name[0] == '.'
}

// Dir walks root recursively, reading and classifying every file enry can
// attribute to a language this module supports. forcedLang, if non-empty,
// skips detection and is looked up directly in registry.
func Dir(root string, registry *lang.Registry, forcedLang string) ([]File, error) {
	var files []File

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if isHiddenDir(filepath.Base(p)) && p != root {
				return filepath.SkipDir
			}

			return nil
		}

		content, readErr := os.ReadFile(p)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", p, readErr)
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			rel = p
		}

		l, ok := resolveLanguage(registry, rel, content, forcedLang)
		if !ok {
			return nil
		}

		files = append(files, File{Path: rel, Language: l, Content: content})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}

// Tree walks a git tree (resolved, e.g., from a commit-ish) instead of the
// working directory, so rule runs can target a historical revision without
// checking it out. blobCache is optional (nil disables caching); when set,
// it is consulted by git blob hash before reading a blob's content, so a
// blob reachable under more than one path in the tree is decompressed once
// per process rather than once per path. ctx is checked during the tree
// walk itself: a cancelled run stops descending the tree rather than
// collecting every path before giving up at the first file read.
func Tree(ctx context.Context, repo *gitlib.Repository, rev string, registry *lang.Registry, forcedLang string, blobCache *cache.LRUBlobCache) ([]File, error) {
	tree, err := repo.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	it, err := tree.FilesContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("walk tree at %s: %w", rev, err)
	}

	var files []File

	err = it.ForEach(func(f *gitlib.File) error {
		content, readErr := blobContent(f, blobCache)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", f.Name, readErr)
		}

		l, ok := resolveLanguage(registry, f.Name, content, forcedLang)
		if !ok {
			return nil
		}

		files = append(files, File{Path: f.Name, Language: l, Content: content})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree at %s: %w", rev, err)
	}

	return files, nil
}

// blobContent returns f's content, serving it from blobCache when the blob's
// hash has already been read and decompressed earlier in this walk.
func blobContent(f *gitlib.File, blobCache *cache.LRUBlobCache) ([]byte, error) {
	if blobCache == nil {
		return f.Contents()
	}

	key := cache.KeyOf(f.Hash[:])

	if content, ok := blobCache.Get(key); ok {
		return content, nil
	}

	content, err := f.Contents()
	if err != nil {
		return nil, err
	}

	_ = blobCache.Put(key, content)

	return content, nil
}

func resolveLanguage(registry *lang.Registry, path string, content []byte, forced string) (*lang.Language, bool) {
	if forced != "" {
		l, err := registry.Get(forced)

		return l, err == nil
	}

	if enry.IsVendor(path) || enry.IsGenerated(path, content) {
		return nil, false
	}

	detected := enry.GetLanguage(filepath.Base(path), content)

	name, ok := enryToLanguage[detected]
	if !ok {
		return nil, false
	}

	l, err := registry.Get(name)

	return l, err == nil
}

package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
	repo *Repository
}

// Hash returns the tree hash.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// EntryByPath returns the tree entry at the given path.
func (t *Tree) EntryByPath(path string) (*TreeEntry, error) {
	entry, err := t.tree.EntryByPath(path)
	if err != nil {
		return nil, fmt.Errorf("entry by path: %w", err)
	}

	return &TreeEntry{entry: entry}, nil
}

// FilesContext returns an iterator over every blob reachable from the tree,
// honoring ctx cancellation: a walk whose ctx is cancelled mid-walk stops
// collecting further files rather than finishing an unbounded tree walk
// first.
func (t *Tree) FilesContext(ctx context.Context) (*FileIter, error) {
	files, err := treeFilesContext(ctx, t.repo, t)
	if err != nil {
		return nil, err
	}

	return &FileIter{files: files, idx: 0}, nil
}

// Files returns an iterator over all files in the tree, with no
// cancellation; equivalent to FilesContext(context.Background()).
func (t *Tree) Files() *FileIter {
	it, _ := t.FilesContext(context.Background())

	return it
}

// Free releases the tree resources.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

// TreeEntry wraps a libgit2 tree entry.
type TreeEntry struct {
	entry *git2go.TreeEntry
}

// Name returns the entry name.
func (e *TreeEntry) Name() string {
	return e.entry.Name
}

// Hash returns the entry object hash.
func (e *TreeEntry) Hash() Hash {
	return HashFromOid(e.entry.Id)
}

package gitlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	git2go "github.com/libgit2/git2go/v34"
)

// errWalkCancelled unwinds git2go's Walk callback once ctx is done; TreeFiles
// and treeFilesContext translate it back to ctx.Err() at the call site.
type errWalkCancelled struct{ err error }

func (e *errWalkCancelled) Error() string { return e.err.Error() }
func (e *errWalkCancelled) Unwrap() error { return e.err }

// File names one blob entry reachable from a tree, by its full repo-relative
// path and content hash.
type File struct {
	Name string
	Hash Hash
	repo *Repository
}

// Contents reads the file's blob content.
func (f *File) Contents() ([]byte, error) {
	blob, err := f.repo.LookupBlob(context.Background(), f.Hash)
	if err != nil {
		return nil, fmt.Errorf("lookup blob for %s: %w", f.Name, err)
	}
	defer blob.Free()

	return blob.Contents(), nil
}

// TreeFiles walks tree recursively and returns every blob entry, with Name
// set to its path relative to tree's root.
func TreeFiles(repo *Repository, tree *Tree) ([]*File, error) {
	return treeFilesContext(context.Background(), repo, tree)
}

// treeFilesContext is TreeFiles with a cancellable walk: ctx is checked once
// per visited entry, so a cancelled scan or rewrite run stops descending
// into the rest of a large tree instead of finishing the walk first.
func treeFilesContext(ctx context.Context, repo *Repository, tree *Tree) ([]*File, error) {
	var files []*File

	err := tree.tree.Walk(func(dir string, entry *git2go.TreeEntry) error {
		if err := ctx.Err(); err != nil {
			return &errWalkCancelled{err: err}
		}

		if entry.Type != git2go.ObjectBlob {
			return nil
		}

		files = append(files, &File{
			Name: path.Join(dir, entry.Name),
			Hash: HashFromOid(entry.Id),
			repo: repo,
		})

		return nil
	})

	var cancelled *errWalkCancelled
	if errors.As(err, &cancelled) {
		return nil, cancelled.err
	}

	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}

	return files, nil
}

// FileIter iterates over files in a tree.
type FileIter struct {
	files []*File
	idx   int
}

// Next returns the next file in the iterator.
func (fi *FileIter) Next() (*File, error) {
	if fi.idx >= len(fi.files) {
		return nil, io.EOF
	}

	f := fi.files[fi.idx]
	fi.idx++

	return f, nil
}

// ForEach calls the callback for each file.
func (fi *FileIter) ForEach(cb func(*File) error) error {
	for _, file := range fi.files {
		cbErr := cb(file)
		if cbErr != nil {
			return cbErr
		}
	}

	return nil
}

// Close is a no-op for compatibility.
func (fi *FileIter) Close() {
	// No-op, but explicitly set idx to len(files) to indicate closed.
	fi.idx = len(fi.files)
}

package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(_ context.Context, hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}

	return &Blob{blob: blob}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree: %w", err)
	}

	return &Tree{tree: tree, repo: r}, nil
}

// ResolveRevision looks up a tree by a revision string (branch, tag, or
// commit-ish), the shape internal/walk needs to locate the source tree a
// rule run should scan.
func (r *Repository) ResolveRevision(rev string) (*Tree, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return nil, fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectTree)
	if err != nil {
		return nil, fmt.Errorf("peel %q to tree: %w", rev, err)
	}

	tree, err := peeled.AsTree()
	if err != nil {
		return nil, fmt.Errorf("%q is not a tree: %w", rev, err)
	}

	return &Tree{tree: tree, repo: r}, nil
}

// ResolveCommit looks up the commit a revision string points at, so a --rev
// scan can report who authored the tree it ran against alongside the match
// results.
func (r *Repository) ResolveCommit(rev string) (*Commit, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return nil, fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return nil, fmt.Errorf("peel %q to commit: %w", rev, err)
	}

	commit, err := peeled.AsCommit()
	if err != nil {
		return nil, fmt.Errorf("%q is not a commit: %w", rev, err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

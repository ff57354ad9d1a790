package gitlib

import (
	"io"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/codegrove/structgrep/pkg/textutil"
)

// Blob wraps a libgit2 blob: the raw bytes behind one File entry in a --rev
// scan's tree, before language detection and parsing take over.
type Blob struct {
	blob *git2go.Blob
}

// Hash returns the blob hash, the key File.Contents' caller uses to dedupe
// reads of the same blob reachable under multiple tree paths.
func (b *Blob) Hash() Hash {
	return HashFromOid(b.blob.Id())
}

// Size returns the blob size in bytes, uncompressed.
func (b *Blob) Size() int64 {
	return b.blob.Size()
}

// Contents returns the blob's decompressed content, the bytes File.Contents
// hands to the language parser.
func (b *Blob) Contents() []byte {
	return b.blob.Contents()
}

// Reader returns a reader over the blob's content, for callers that want to
// stream it (e.g. hashing or size-limited sniffing) instead of holding the
// whole decompressed blob in memory at once.
func (b *Blob) Reader() io.Reader {
	return textutil.BytesReader(b.blob.Contents())
}

// Free releases the blob resources.
func (b *Blob) Free() {
	if b.blob != nil {
		b.blob.Free()
		b.blob = nil
	}
}

// Native returns the underlying libgit2 blob.
func (b *Blob) Native() *git2go.Blob {
	return b.blob
}

package gitlib

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
)

// ErrRemoteNotSupported is returned when a remote repository URI is provided.
var ErrRemoteNotSupported = errors.New("remote repositories not supported")

var scpLikeURI = regexp.MustCompile(`^[A-Za-z]\w*@[A-Za-z0-9][\w.]*:`)

// LoadRepository opens a local git repository. Returns an error for remote URIs.
func LoadRepository(uri string) (*Repository, error) {
	if strings.Contains(uri, "://") || scpLikeURI.MatchString(uri) {
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotSupported, uri)
	}

	if uri[len(uri)-1] == os.PathSeparator {
		uri = uri[:len(uri)-1]
	}

	repository, err := OpenRepository(uri)
	if err != nil {
		log.Fatalf("failed to open %s: %v", uri, err)
	}

	return repository, nil
}

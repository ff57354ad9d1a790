package gitlib

import (
	"fmt"
	"time"
)

// Signature is a git author or committer identity, surfaced by --rev scans
// and rewrites as provenance for the revision they ran against.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// String formats the signature the way `git log` does its author line, for
// the provenance banner printed above --rev results.
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %s", s.Name, s.Email, s.When.Format("2006-01-02"))
}

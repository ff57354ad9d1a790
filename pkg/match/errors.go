package match

import (
	"errors"
	"fmt"
)

// Kind classifies a compile-time failure. The matcher itself is total: once
// a RuleCore exists, Match returns true or false and never an error. Every
// Kind below is therefore only ever produced while building a RuleCore.
type Kind string

// The error kinds named in the taxonomy. Kept as a closed, named set rather
// than raw strings so callers can switch on them.
const (
	KindParse     Kind = "parse"
	KindPattern   Kind = "pattern"
	KindKind      Kind = "kind"
	KindRegex     Kind = "regex"
	KindSchema    Kind = "schema"
	KindReference Kind = "reference"
	KindTemplate  Kind = "template"
)

// CompileError wraps a compile-time failure with the Kind that produced it,
// so callers can distinguish (for example) a malformed regex from an
// unknown grammar kind without string-matching the message.
type CompileError struct {
	Kind Kind
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// newCompileError builds a CompileError of the given kind whose Err is
// fmt.Errorf(format, args...); a %w verb in format wraps a sentinel or cause.
func newCompileError(kind Kind, format string, args ...any) error {
	return &CompileError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Sentinel errors identifying specific compile-time conditions. Tests and
// callers can use errors.Is against these.
var (
	ErrEmptyPattern       = errors.New("pattern snippet is empty")
	ErrSelectorNotFound   = errors.New("selector kind not found in context")
	ErrUnknownKind        = errors.New("kind name not in language vocabulary")
	ErrInvalidRegex       = errors.New("invalid regular expression")
	ErrUnknownRuleField   = errors.New("unrecognized field in rule object")
	ErrNoRuleField        = errors.New("rule object has no recognized field")
	ErrAmbiguousRuleField = errors.New("rule object has more than one recognized field")
	ErrInvalidStopBy      = errors.New("unrecognized stopBy value")
	ErrUnresolvedUtil     = errors.New("matches references an undefined util")
	ErrCyclicUtil         = errors.New("cyclic utils reference")
	ErrInvalidTemplate    = errors.New("invalid fix template")
	ErrUnknownLanguage    = errors.New("unknown language identifier")
	ErrSchemaInvalid      = errors.New("rule document does not conform to the rule schema")
)

// IsKind reports whether err is a CompileError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *CompileError

	if errors.As(err, &ce) {
		return ce.Kind == kind
	}

	return false
}

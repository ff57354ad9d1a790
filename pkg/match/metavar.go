package match

import "strings"

// VarKind tags the variant of a decoded metavariable token.
type VarKind int

const (
	// VarNone means the text does not decode as a metavariable.
	VarNone VarKind = iota
	// VarNamed is $ID: captures one node under the binding ID.
	VarNamed
	// VarAnonymous is $_: matches one node without binding.
	VarAnonymous
	// VarEllipsis is $$$: matches zero or more siblings without binding.
	VarEllipsis
	// VarNamedEllipsis is $$$ID: matches zero or more siblings and binds the sequence.
	VarNamedEllipsis
)

// MetaVar is the decoded form of a pattern leaf's literal text.
type MetaVar struct {
	Kind VarKind
	ID   string // set for VarNamed and VarNamedEllipsis
}

// IsEllipsis reports whether v consumes a run of siblings rather than one node.
func (v MetaVar) IsEllipsis() bool {
	return v.Kind == VarEllipsis || v.Kind == VarNamedEllipsis
}

// isUpperOrUnderscore reports whether every byte of s is in [A-Z_].
func isUpperOrUnderscore(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}

	return true
}

// ExtractMetaVar decodes a leaf's literal text into a metavariable variant,
// per §4.A:
//  1. text == mc*3                      -> Ellipsis
//  2. text == mc*3 + [A-Z_]+            -> Anonymous-ellipsis (leading "_") or NamedEllipsis
//  3. text == mc + [A-Z_]+              -> Anonymous (leading "_") or Named
//  4. otherwise                         -> None
func ExtractMetaVar(text string, mc byte) MetaVar {
	triple := string([]byte{mc, mc, mc})

	if text == triple {
		return MetaVar{Kind: VarEllipsis}
	}

	if rest, ok := strings.CutPrefix(text, triple); ok && isUpperOrUnderscore(rest) {
		if rest[0] == '_' {
			return MetaVar{Kind: VarEllipsis}
		}

		return MetaVar{Kind: VarNamedEllipsis, ID: rest}
	}

	single := string([]byte{mc})
	if rest, ok := strings.CutPrefix(text, single); ok && isUpperOrUnderscore(rest) {
		if rest[0] == '_' {
			return MetaVar{Kind: VarAnonymous}
		}

		return MetaVar{Kind: VarNamed, ID: rest}
	}

	return MetaVar{Kind: VarNone}
}

// SplitFirstMetaVar splits "$ID rest" at the first byte that is not in
// [A-Z_], returning the metavariable name and the remainder of s after the
// leading mc has been consumed. ok is false if s does not begin with mc
// followed by at least one [A-Z_] byte.
func SplitFirstMetaVar(s string, mc byte) (id, rest string, ok bool) {
	if len(s) == 0 || s[0] != mc {
		return "", "", false
	}

	i := 1
	for i < len(s) && (s[i] == '_' || (s[i] >= 'A' && s[i] <= 'Z')) {
		i++
	}

	if i == 1 {
		return "", "", false
	}

	return s[1:i], s[i:], true
}

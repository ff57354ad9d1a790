// Package inject implements the optional language-injection hook: locating
// embedded sub-language regions inside a host document so the match engine
// can be re-invoked per region with position offsets remembered, and results
// remapped back onto the host file.
//
// The core itself knows nothing about injection — a Recognizer is just a
// compiled rule run against the host grammar, and the byte ranges its
// matches cover are handed back as regions in a different language. Region
// extraction never mutates the host Document or the RuleCore it runs.
package inject

import (
	"sort"

	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/match"
)

// Region is one byte range of a host document written in SubLanguage rather
// than the host grammar, as produced by a Recognizer.
type Region struct {
	Language string
	Start    int
	End      int
}

// Recognizer finds one class of embedded region in documents parsed against
// HostLanguage: Selector is a compiled rule (the same §6 rule document
// format used everywhere else) whose matches mark where SubLanguage content
// begins and ends.
type Recognizer struct {
	HostLanguage string
	SubLanguage  string
	Selector     *match.RuleCore
}

// Registry holds the recognizers known to a process, keyed by host
// language. Built once at startup and treated as immutable thereafter — per
// §5, no external collaborator mutates shared state while match calls are
// in flight.
type Registry struct {
	recognizers map[string][]Recognizer
}

// NewRegistry returns an empty injection registry.
func NewRegistry() *Registry {
	return &Registry{recognizers: make(map[string][]Recognizer)}
}

// Register adds r under its HostLanguage. Call only during startup, before
// the registry is handed to any goroutine calling ExtractRegions.
func (reg *Registry) Register(r Recognizer) {
	reg.recognizers[r.HostLanguage] = append(reg.recognizers[r.HostLanguage], r)
}

// HasRecognizers reports whether any recognizer is registered for hostLang,
// so a caller can skip the injection pass entirely for languages that never
// embed another language.
func (reg *Registry) HasRecognizers(hostLang string) bool {
	return len(reg.recognizers[hostLang]) > 0
}

// ExtractRegions runs every recognizer registered for doc's language against
// doc, returning the sub-language regions found, ordered by Start. Multiple
// recognizers may yield overlapping regions; callers that re-invoke the core
// per region are responsible for resolving overlap.
func ExtractRegions(reg *Registry, doc *match.Document) []Region {
	var regions []Region

	for _, r := range reg.recognizers[doc.Language().Name()] {
		for _, m := range r.Selector.FindAll(doc) {
			rng := m.Node.Range()
			regions = append(regions, Region{Language: r.SubLanguage, Start: rng.StartByte, End: rng.EndByte})
		}
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })

	return regions
}

// Extract parses each region's slice of source under its SubLanguage,
// returning one Document per region alongside the offset to add back onto
// any position computed from it to remap into the host file. Callers must
// Close each returned Document once done, and must not close the host
// Document's registry until every extracted Document is closed.
func Extract(registry *lang.Registry, source []byte, regions []Region) ([]ExtractedRegion, error) {
	out := make([]ExtractedRegion, 0, len(regions))

	for _, r := range regions {
		l, err := registry.Get(r.Language)
		if err != nil {
			return nil, err
		}

		doc, err := match.Parse(l, source[r.Start:r.End])
		if err != nil {
			return nil, err
		}

		out = append(out, ExtractedRegion{Region: r, Doc: doc, ByteOffset: r.Start})
	}

	return out, nil
}

// ExtractedRegion is a sub-language region already parsed into its own
// Document, plus the byte offset into the host file that any position
// computed from Doc must be shifted by to remap onto the host.
type ExtractedRegion struct {
	Region
	Doc        *match.Document
	ByteOffset int
}

// CloseAll releases the Document underlying every extracted region.
func CloseAll(regions []ExtractedRegion) {
	for _, r := range regions {
		r.Doc.Close()
	}
}

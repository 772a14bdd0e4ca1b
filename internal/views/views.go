// Package views resolves the upstream views index: which dataset detail
// graphs exist, across index pages.
package views

import (
	"iter"
	"sort"

	"github.com/opendatazurich/losd-harvester/internal/rdf"
	"github.com/opendatazurich/losd-harvester/internal/vocab"
)

// Views yields every dataset view URI referenced by a views-index graph.
// The triple store does not preserve insertion order, so the URIs are
// sorted lexicographically to keep runs deterministic.
func Views(g *rdf.Graph) iter.Seq[string] {
	return func(yield func(string) bool) {
		var uris []string
		for t := range g.Triples("", vocab.SchemaDataset) {
			uris = append(uris, t.Object.RawValue())
		}
		sort.Strings(uris)
		for _, uri := range uris {
			if !yield(uri) {
				return
			}
		}
	}
}

// Package profile maps one dataset graph to one catalog record draft.
// Profiles are swappable per upstream schema revision and selected by
// configuration.
package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/opendatazurich/losd-harvester/internal/domain"
	"github.com/opendatazurich/losd-harvester/internal/rdf"
)

// IncompleteError reports a dataset missing its identity fields. All
// other fields degrade to empty instead of failing the record.
type IncompleteError struct {
	URI     string
	Missing []string
}

func (e IncompleteError) Error() string {
	return fmt.Sprintf("dataset %s missing required fields: %s", e.URI, strings.Join(e.Missing, ", "))
}

// Profile maps a dataset node within a graph to a record draft. It may
// dereference auxiliary graphs through the Options it was built with.
type Profile interface {
	Name() string
	MapRecord(ctx context.Context, g *rdf.Graph, datasetURI string) (domain.Record, error)
}

// Options carry the auxiliary-fetch capability and portal defaults into a
// profile. Publishers is scoped to one run and discarded with it.
type Options struct {
	Deref           *Dereferencer
	Publishers      PublisherCache
	Maintainer      string
	MaintainerEmail string
	Licenses        map[string]string
}

// Factory builds a profile from run options.
type Factory func(Options) Profile

var registry = map[string]Factory{}

// Register adds a profile factory under a name. Later registrations
// replace earlier ones.
func Register(name string, f Factory) {
	registry[name] = f
}

// New builds the named profile, or errors when it is not registered.
func New(name string, opts Options) (Profile, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("mapping profile %q not registered (have %s)", name, strings.Join(Names(), ", "))
	}
	return f(opts), nil
}

// Names lists the registered profiles.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package profile

import (
	"context"

	"github.com/opendatazurich/losd-harvester/internal/fetch"
	"github.com/opendatazurich/losd-harvester/internal/rdf"
)

// Dereferencer follows a URI found as a triple's object to fetch and
// parse another document as a new graph. Failures are returned once, not
// retried; callers decide whether the field degrades or the record fails.
type Dereferencer struct {
	Fetcher *fetch.Fetcher
	// Format overrides the media type of dereferenced documents.
	Format string
}

func (d *Dereferencer) Graph(ctx context.Context, uri string) (*rdf.Graph, error) {
	content, contentType, err := d.Fetcher.Get(ctx, uri, d.Format)
	if err != nil {
		return nil, err
	}
	return rdf.Parse(content, contentType)
}

// PublisherCache memoizes publisher names per run so repeated references
// to the same organisation cost one fetch.
type PublisherCache map[string]string

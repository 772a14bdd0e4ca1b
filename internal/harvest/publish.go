package harvest

import (
	"time"

	"github.com/opendatazurich/losd-harvester/internal/rdf"
	"github.com/opendatazurich/losd-harvester/internal/vocab"
)

// Reasons a dataset is withheld from import. Distinct so data-quality
// problems and expected future-dated entries can be told apart in logs.
const (
	ReasonNoPublishDate  = "no first-published date"
	ReasonBadPublishDate = "unparsable first-published date"
	ReasonFuturePublish  = "first-published date in the future"
)

var publishLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// IsPublishable reports whether a dataset may be imported: its
// first-published date must exist, parse, and lie strictly in the past.
// The empty reason means publishable.
func IsPublishable(g *rdf.Graph, datasetURI string, now time.Time) (bool, string) {
	raw := g.ObjectValue(datasetURI, vocab.DCTIssued)
	if raw == "" {
		return false, ReasonNoPublishDate
	}
	var issued time.Time
	parsed := false
	for _, layout := range publishLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			issued = t
			parsed = true
			break
		}
	}
	if !parsed {
		return false, ReasonBadPublishDate
	}
	if !issued.Before(now) {
		return false, ReasonFuturePublish
	}
	return true, ""
}

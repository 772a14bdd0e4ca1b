package profile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/opendatazurich/losd-harvester/internal/domain"
	"github.com/opendatazurich/losd-harvester/internal/rdf"
	"github.com/opendatazurich/losd-harvester/internal/vocab"
)

// LOSDName is the registry key of the City of Zurich LOSD profile.
const LOSDName = "stadtzh_losd"

func init() {
	Register(LOSDName, func(opts Options) Profile {
		return &losdProfile{opts: opts}
	})
}

// losdProfile maps dataset views of the ld.stadt-zuerich.ch statistics
// service.
type losdProfile struct {
	opts Options
}

func (p *losdProfile) Name() string { return LOSDName }

func (p *losdProfile) MapRecord(ctx context.Context, g *rdf.Graph, datasetURI string) (domain.Record, error) {
	var rec domain.Record

	rec.Title = g.ObjectValue(datasetURI, vocab.SchemaName)
	alternate := g.ObjectValue(datasetURI, vocab.SchemaAlternateName)
	rec.Name = strings.ToLower(alternate)
	rec.Notes = alternate

	var missing []string
	if rec.Name == "" {
		missing = append(missing, "name")
	}
	if rec.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return domain.Record{}, IncompleteError{URI: datasetURI, Missing: missing}
	}

	rec.SparqlEndpoint = g.ObjectValue(datasetURI, vocab.VoidSparqlEndpoint)
	rec.TimeRange = g.ObjectValue(datasetURI, vocab.SchemaTemporalCoverage)

	if v := g.ObjectValue(datasetURI, vocab.DCTIssued); v != "" {
		rec.DateFirstPublished = formatDate(v)
	}
	if v := g.ObjectValue(datasetURI, vocab.DCTModified); v != "" {
		rec.DateLastUpdated = formatDate(v)
	}

	rec.Maintainer = p.opts.Maintainer
	rec.MaintainerEmail = p.opts.MaintainerEmail

	if publishers := p.publishers(ctx, g, datasetURI); len(publishers) > 0 {
		rec.Author = publishers[0]
	}
	rec.LicenseID = p.license(g, datasetURI)
	rec.LegalInfo = p.rights(ctx, g, datasetURI)
	rec.Attributes = p.attributes(ctx, g, datasetURI)
	rec.Resources = p.resources(g, datasetURI, rec.Name)
	rec.Tags = p.tags(ctx, g, datasetURI)

	if rec.TimeRange == "" || rec.Notes == "" {
		p.fillFromBasedOn(ctx, g, datasetURI, &rec)
	}
	return rec, nil
}

// publishers follows schema:publisher relations. A publisher node carried
// in the same graph is read directly; a bare reference is dereferenced
// once per run through the cache. Failures degrade to "no publisher".
func (p *losdProfile) publishers(ctx context.Context, g *rdf.Graph, datasetURI string) []string {
	var publishers []string
	for _, ref := range g.ObjectRefs(datasetURI, vocab.SchemaPublisher) {
		if name := g.ObjectValue(ref, vocab.SchemaName); name != "" {
			publishers = append(publishers, name)
			continue
		}
		if name, ok := p.opts.Publishers[ref]; ok {
			if name != "" {
				publishers = append(publishers, name)
			}
			continue
		}
		name, err := p.derefPublisher(ctx, ref)
		if err != nil {
			log.Printf("profile %s: publisher %s unresolved: %v", LOSDName, ref, err)
			p.cachePublisher(ref, "")
			continue
		}
		p.cachePublisher(ref, name)
		if name != "" {
			publishers = append(publishers, name)
		}
	}
	return publishers
}

func (p *losdProfile) derefPublisher(ctx context.Context, ref string) (string, error) {
	aux, err := p.opts.Deref.Graph(ctx, ref)
	if err != nil {
		return "", err
	}
	return aux.ObjectValue("", vocab.SchemaName), nil
}

func (p *losdProfile) cachePublisher(ref, name string) {
	if p.opts.Publishers != nil {
		p.opts.Publishers[ref] = name
	}
}

func (p *losdProfile) license(g *rdf.Graph, datasetURI string) string {
	objs := g.Objects(datasetURI, vocab.DCTLicense)
	if len(objs) == 0 {
		return ""
	}
	license := rdf.TermValue(objs[0])
	if mapped, ok := p.opts.Licenses[license]; ok {
		return mapped
	}
	return license
}

// rights follows the legal-foundation relation, checked under both
// namespace roots since integration and production graphs use different
// bases. Absence or dereference failure yields an empty string.
func (p *losdProfile) rights(ctx context.Context, g *rdf.Graph, datasetURI string) string {
	refs := g.ObjectRefs(datasetURI, vocab.LegalFoundation)
	if len(refs) == 0 {
		refs = g.ObjectRefs(datasetURI, vocab.LegalFoundationInteg)
	}
	if len(refs) == 0 {
		return ""
	}
	aux, err := p.opts.Deref.Graph(ctx, refs[0])
	if err != nil {
		log.Printf("profile %s: legal foundation %s unresolved: %v", LOSDName, refs[0], err)
		return ""
	}
	for _, predicate := range []string{vocab.SchemaText, vocab.DCTRights, vocab.SchemaDescription} {
		if v := aux.ObjectValue("", predicate); v != "" {
			return v
		}
	}
	return ""
}

// attributes resolves each cube:dimension through its cube:as code graph.
// A dimension whose code dereference fails is skipped; partial coverage
// is never fatal.
func (p *losdProfile) attributes(ctx context.Context, g *rdf.Graph, datasetURI string) []domain.Attribute {
	seen := map[string]bool{}
	var attrs []domain.Attribute
	for _, dim := range g.ObjectRefs(datasetURI, vocab.CubeDimension) {
		codeURLs := g.ObjectRefs(dim, vocab.CubeAs)
		if len(codeURLs) == 0 {
			continue
		}
		code, err := p.opts.Deref.Graph(ctx, codeURLs[0])
		if err != nil {
			log.Printf("profile %s: dimension code %s unresolved: %v", LOSDName, codeURLs[0], err)
			continue
		}
		attr := domain.Attribute{
			Name:        code.ObjectValue("", vocab.SchemaName),
			TechName:    code.ObjectValue("", vocab.SchemaIdentifier),
			Description: code.ObjectValue("", vocab.SchemaDescription),
		}
		if attr.TechName != "" {
			attr.Name = fmt.Sprintf("%s (technisch: %s)", attr.Name, attr.TechName)
		}
		key := attr.Name + "|" + attr.Description
		if seen[key] {
			continue
		}
		seen[key] = true
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return attrs
}

func (p *losdProfile) resources(g *rdf.Graph, datasetURI, recordName string) []domain.Resource {
	var resources []domain.Resource
	for _, ref := range g.ObjectRefs(datasetURI, vocab.DCATDistribution) {
		res := domain.Resource{
			URI:      ref,
			URL:      g.ObjectValue(ref, vocab.DCATDownloadURL),
			Format:   g.ObjectValue(ref, vocab.DCTFormat),
			Mimetype: g.ObjectValue(ref, vocab.DCATMediaType),
			Name:     g.ObjectValue(ref, vocab.SchemaName),
		}
		if res.Name == "" {
			res.Name = recordName
		}
		if strings.Contains(res.Mimetype, "csv") {
			res.ResourceType = "file"
		} else {
			res.ResourceType = "api"
		}
		resources = append(resources, res)
	}
	return resources
}

// tags collects keywords from the dataset node, falling back to the
// schema:isBasedOn dataset when the source models keywords there. Every
// tag goes through the slug-safe transform; duplicates follow upstream
// occurrence count.
func (p *losdProfile) tags(ctx context.Context, g *rdf.Graph, datasetURI string) []string {
	keywords := g.Objects(datasetURI, vocab.SchemaKeywords)
	var tags []string
	for _, kw := range keywords {
		if v := rdf.TermValue(kw); v != "" {
			tags = append(tags, mungeTag(v))
		}
	}
	if len(tags) > 0 {
		return tags
	}
	for _, ref := range g.ObjectRefs(datasetURI, vocab.SchemaIsBasedOn) {
		aux, err := p.opts.Deref.Graph(ctx, ref)
		if err != nil {
			log.Printf("profile %s: based-on %s unresolved: %v", LOSDName, ref, err)
			continue
		}
		for _, kw := range aux.Objects("", vocab.SchemaKeywords) {
			if v := rdf.TermValue(kw); v != "" {
				tags = append(tags, mungeTag(v))
			}
		}
	}
	return tags
}

// fillFromBasedOn backfills notes and time range from the referenced
// source dataset when the view itself omits them.
func (p *losdProfile) fillFromBasedOn(ctx context.Context, g *rdf.Graph, datasetURI string, rec *domain.Record) {
	refs := g.ObjectRefs(datasetURI, vocab.SchemaIsBasedOn)
	if len(refs) == 0 {
		return
	}
	aux, err := p.opts.Deref.Graph(ctx, refs[0])
	if err != nil {
		log.Printf("profile %s: based-on %s unresolved: %v", LOSDName, refs[0], err)
		return
	}
	if rec.Notes == "" {
		rec.Notes = aux.ObjectValue("", vocab.SchemaDescription)
	}
	if rec.TimeRange == "" {
		rec.TimeRange = aux.ObjectValue("", vocab.SchemaTemporalCoverage)
	}
}

func mungeTag(v string) string {
	return slug.Make(v)
}

// portal date display convention
const displayDate = "02.01.2006"

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// formatDate reformats an ISO-8601 date for display. Unparsable values
// pass through unchanged; dates are never guessed.
func formatDate(v string) string {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(displayDate)
		}
	}
	log.Printf("profile: date %q is not ISO-8601, passing through", v)
	return v
}

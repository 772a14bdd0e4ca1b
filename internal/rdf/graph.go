// Package rdf wraps the triple engine behind parse and pattern-query
// helpers shaped for the mapping profiles.
package rdf

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	rdf2go "github.com/deiu/rdf2go"
)

// DefaultFormat is the serialization assumed when the source does not
// negotiate one.
const DefaultFormat = "text/turtle"

// ParseError wraps a syntax problem in upstream content.
type ParseError struct {
	MediaType string
	Cause     error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse %s graph: %v", e.MediaType, e.Cause)
}

func (e ParseError) Unwrap() error { return e.Cause }

// Graph is an immutable set of triples obtained from one fetch.
type Graph struct {
	g *rdf2go.Graph
}

// Parse builds a graph from serialized content. An empty mediaType falls
// back to DefaultFormat; media types other than turtle or JSON-LD fail.
func Parse(data []byte, mediaType string) (*Graph, error) {
	mime := normalizeMediaType(mediaType)
	g := rdf2go.NewGraph("")
	if err := g.Parse(bytes.NewReader(data), mime); err != nil {
		return nil, ParseError{MediaType: mime, Cause: err}
	}
	return &Graph{g: g}, nil
}

func normalizeMediaType(mediaType string) string {
	switch {
	case mediaType == "":
		return DefaultFormat
	case strings.Contains(mediaType, "json"):
		return "application/ld+json"
	default:
		return "text/turtle"
	}
}

// Len returns the number of triples.
func (g *Graph) Len() int { return g.g.Len() }

// Triples yields every triple matching the pattern; empty strings act as
// wildcards. The sequence is finite and restartable per call.
func (g *Graph) Triples(subject, predicate string) iter.Seq[*rdf2go.Triple] {
	return func(yield func(*rdf2go.Triple) bool) {
		// All returns nothing for the all-wildcard pattern, so the full
		// scan goes through the triple iterator instead. The channel is
		// drained even on early stop so its producer goroutine exits.
		if subject == "" && predicate == "" {
			stopped := false
			for t := range g.g.IterTriples() {
				if stopped {
					continue
				}
				if !yield(t) {
					stopped = true
				}
			}
			return
		}
		for _, t := range g.g.All(term(subject), term(predicate), nil) {
			if !yield(t) {
				return
			}
		}
	}
}

// Objects returns all object terms for a subject/predicate pattern in
// graph order.
func (g *Graph) Objects(subject, predicate string) []rdf2go.Term {
	var objs []rdf2go.Term
	for t := range g.Triples(subject, predicate) {
		objs = append(objs, t.Object)
	}
	return objs
}

// ObjectValue returns the raw value of the first matching object, or "".
// When multiple objects exist any one may be returned; callers must not
// rely on an ordering beyond "a value present in the graph".
func (g *Graph) ObjectValue(subject, predicate string) string {
	for t := range g.Triples(subject, predicate) {
		return t.Object.RawValue()
	}
	return ""
}

// ObjectRefs returns the URIs of all resource objects for the pattern,
// skipping literals and blank nodes.
func (g *Graph) ObjectRefs(subject, predicate string) []string {
	var refs []string
	for t := range g.Triples(subject, predicate) {
		if r, ok := t.Object.(*rdf2go.Resource); ok {
			refs = append(refs, r.URI)
		}
	}
	return refs
}

// TermValue extracts a plain string from a literal or resource term;
// other term kinds yield "".
func TermValue(t rdf2go.Term) string {
	switch v := t.(type) {
	case *rdf2go.Literal:
		return v.Value
	case *rdf2go.Resource:
		return v.URI
	default:
		return ""
	}
}

func term(v string) rdf2go.Term {
	if v == "" {
		return nil
	}
	return rdf2go.NewResource(v)
}

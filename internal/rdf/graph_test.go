package rdf_test

import (
	"errors"
	"testing"

	"github.com/opendatazurich/losd-harvester/internal/rdf"
)

const fixture = `
<http://example.com/d1> <http://schema.org/name> "Population" .
<http://example.com/d1> <http://schema.org/publisher> <http://example.com/org> .
<http://example.com/d1> <http://schema.org/keywords> "health" .
<http://example.com/d1> <http://schema.org/keywords> "age" .
<http://example.com/d2> <http://schema.org/name> "Housing" .
`

func parseFixture(t *testing.T) *rdf.Graph {
	t.Helper()
	g, err := rdf.Parse([]byte(fixture), "text/turtle")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return g
}

func TestParseAndLen(t *testing.T) {
	g := parseFixture(t)
	if g.Len() != 5 {
		t.Fatalf("expected 5 triples, got %d", g.Len())
	}
}

func TestParseDefaultsToTurtle(t *testing.T) {
	if _, err := rdf.Parse([]byte(fixture), ""); err != nil {
		t.Fatalf("parse with empty media type: %v", err)
	}
	if _, err := rdf.Parse([]byte(fixture), "text/turtle; charset=utf-8"); err != nil {
		t.Fatalf("parse with parameterized media type: %v", err)
	}
}

func TestParseError(t *testing.T) {
	_, err := rdf.Parse([]byte("<<< not turtle"), "text/turtle")
	var perr rdf.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestObjectValue(t *testing.T) {
	g := parseFixture(t)
	if v := g.ObjectValue("http://example.com/d1", "http://schema.org/name"); v != "Population" {
		t.Fatalf("got %q", v)
	}
	if v := g.ObjectValue("http://example.com/d1", "http://schema.org/missing"); v != "" {
		t.Fatalf("expected empty, got %q", v)
	}
}

func TestObjectsAndWildcards(t *testing.T) {
	g := parseFixture(t)
	if got := len(g.Objects("http://example.com/d1", "http://schema.org/keywords")); got != 2 {
		t.Fatalf("expected 2 keywords, got %d", got)
	}
	// wildcard subject matches both datasets
	if got := len(g.Objects("", "http://schema.org/name")); got != 2 {
		t.Fatalf("expected 2 names across graph, got %d", got)
	}
}

func TestObjectRefsSkipsLiterals(t *testing.T) {
	g := parseFixture(t)
	refs := g.ObjectRefs("http://example.com/d1", "http://schema.org/publisher")
	if len(refs) != 1 || refs[0] != "http://example.com/org" {
		t.Fatalf("got %v", refs)
	}
	if refs := g.ObjectRefs("http://example.com/d1", "http://schema.org/keywords"); len(refs) != 0 {
		t.Fatalf("literals must not be refs, got %v", refs)
	}
}

func TestTriplesAllWildcard(t *testing.T) {
	g := parseFixture(t)
	n := 0
	for range g.Triples("", "") {
		n++
	}
	if n != 5 {
		t.Fatalf("expected all 5 triples, got %d", n)
	}
}

func TestTriplesEarlyStop(t *testing.T) {
	g := parseFixture(t)
	n := 0
	for range g.Triples("", "") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected early stop after 2, got %d", n)
	}
}

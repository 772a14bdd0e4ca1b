package views_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opendatazurich/losd-harvester/internal/fetch"
	"github.com/opendatazurich/losd-harvester/internal/rdf"
	"github.com/opendatazurich/losd-harvester/internal/views"
)

func TestViewsYieldsDatasetObjects(t *testing.T) {
	index := `
<http://example.com/catalog> <http://schema.org/dataset> <http://example.com/view/b> .
<http://example.com/catalog> <http://schema.org/dataset> <http://example.com/view/a> .
<http://example.com/catalog> <http://schema.org/name> "not a view" .
`
	g, err := rdf.Parse([]byte(index), "text/turtle")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var got []string
	for uri := range views.Views(g) {
		got = append(got, uri)
	}
	want := []string{"http://example.com/view/a", "http://example.com/view/b"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected sorted views %v, got %v", want, got)
	}
}

func TestGatherWalksPagesAndResolvesViews(t *testing.T) {
	var srvURL string
	pagesFetched := map[string]int{}
	mux := http.NewServeMux()
	mux.HandleFunc("/statistics", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if r.Method == http.MethodGet {
			pagesFetched[page]++
		}
		w.Header().Set("Content-Type", "text/turtle")
		switch page {
		case "1":
			fmt.Fprintf(w, `<%s/statistics> <http://schema.org/dataset> <%s/view/b> .
<%s/statistics> <http://schema.org/dataset> <%s/view/a> .`, srvURL, srvURL, srvURL, srvURL)
		case "2":
			fmt.Fprintf(w, `<%s/statistics> <http://schema.org/dataset> <%s/view/c> .`, srvURL, srvURL)
		default:
			// later pages repeat the first page, so nothing is unseen
			fmt.Fprintf(w, `<%s/statistics> <http://schema.org/dataset> <%s/view/a> .`, srvURL, srvURL)
		}
	})
	mux.HandleFunc("/view/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		fmt.Fprintf(w, `<%s%s> <http://schema.org/name> "detail" .`, srvURL, r.URL.Path)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	g := &views.Gatherer{Fetcher: fetch.New(), Format: "text/turtle", MaxPages: 10}
	datasets, skipped, err := g.Gather(context.Background(), srv.URL+"/statistics")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no skips, got %d", skipped)
	}
	if len(datasets) != 3 {
		t.Fatalf("expected 3 datasets, got %d", len(datasets))
	}
	// views sort within a page, pages keep their walk order
	want := []string{srv.URL + "/view/a", srv.URL + "/view/b", srv.URL + "/view/c"}
	for i, ds := range datasets {
		if ds.URI != want[i] {
			t.Fatalf("dataset %d: expected %s, got %s", i, want[i], ds.URI)
		}
	}
	// page 3 repeats known views and stops the walk
	if pagesFetched["3"] != 1 || pagesFetched["4"] != 0 {
		t.Fatalf("pagination did not stop at first repeat page: %v", pagesFetched)
	}
}

func TestGatherSkipsFailingViews(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/statistics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, `<%s/statistics> <http://schema.org/dataset> <%s/view/ok> .
<%s/statistics> <http://schema.org/dataset> <%s/view/broken> .`, srvURL, srvURL, srvURL, srvURL)
		}
	})
	mux.HandleFunc("/view/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		fmt.Fprintf(w, `<%s/view/ok> <http://schema.org/name> "ok" .`, srvURL)
	})
	mux.HandleFunc("/view/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	g := &views.Gatherer{Fetcher: fetch.New(), Format: "text/turtle", MaxPages: 5}
	datasets, skipped, err := g.Gather(context.Background(), srv.URL+"/statistics")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skip, got %d", skipped)
	}
	if len(datasets) != 1 || !strings.HasSuffix(datasets[0].URI, "/view/ok") {
		t.Fatalf("unexpected datasets %+v", datasets)
	}
}

func TestCorpusConcatenatesContent(t *testing.T) {
	corpus := views.Corpus([]views.Dataset{
		{Content: []byte("a")},
		{Content: []byte("b")},
	})
	if string(corpus) != "a\nb\n" {
		t.Fatalf("got %q", corpus)
	}
}

package views

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/opendatazurich/losd-harvester/internal/fetch"
	"github.com/opendatazurich/losd-harvester/internal/rdf"
)

// Dataset is one resolved view: its URI and the raw detail document.
type Dataset struct {
	URI     string
	Content []byte
	Type    string
}

// Gatherer walks the paged views index and pulls every dataset detail
// document.
type Gatherer struct {
	Fetcher *fetch.Fetcher
	// Format overrides the media type of index and detail documents.
	Format string
	// MaxPages bounds pagination against a source that never stops
	// listing.
	MaxPages int
}

// Gather fetches baseURL?page=N for increasing N starting at 1 until a
// page yields no unseen view, then fetches each view's detail document in
// discovery order. Per-view fetch failures are logged and skipped; the
// second return value counts them. The concatenated content of all
// resolved documents forms one corpus for downstream parsing.
func (g *Gatherer) Gather(ctx context.Context, baseURL string) ([]Dataset, int, error) {
	seen := map[string]bool{}
	var order []string

	maxPages := g.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}
	for page := 1; page <= maxPages; page++ {
		pageURL, err := withPage(baseURL, page)
		if err != nil {
			return nil, 0, fetch.ErrInvalidInput{URL: baseURL, Reason: err.Error()}
		}
		content, contentType, err := g.Fetcher.Get(ctx, pageURL, g.Format)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch views index page %d: %w", page, err)
		}
		index, err := rdf.Parse(content, contentType)
		if err != nil {
			return nil, 0, fmt.Errorf("parse views index page %d: %w", page, err)
		}
		unseen := 0
		for uri := range Views(index) {
			if seen[uri] {
				continue
			}
			seen[uri] = true
			order = append(order, uri)
			unseen++
		}
		if unseen == 0 {
			break
		}
	}

	var datasets []Dataset
	skipped := 0
	for _, uri := range order {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		content, contentType, err := g.Fetcher.Get(ctx, uri, g.Format)
		if err != nil {
			log.Printf("gather: skipping view %s: %v", uri, err)
			skipped++
			continue
		}
		datasets = append(datasets, Dataset{URI: uri, Content: content, Type: contentType})
	}
	return datasets, skipped, nil
}

// Corpus concatenates the raw content of all gathered documents so that
// downstream parsing sees every dataset graph at once.
func Corpus(datasets []Dataset) []byte {
	var b strings.Builder
	for _, d := range datasets {
		b.Write(d.Content)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// withPage appends the page query parameter, creating the query string if
// absent and appending with & otherwise.
func withPage(baseURL string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

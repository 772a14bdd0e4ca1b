// Package fetch retrieves remote graph content with size limits and
// content-type negotiation.
package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxBytes caps a single download at 50 MB.
	DefaultMaxBytes = 1024 * 1024 * 50
	// DefaultTimeout bounds every request.
	DefaultTimeout = 15 * time.Second

	chunkSize = 1024
)

// Fetcher downloads remote content. The Accept header is sent on every
// request, including auxiliary dereferences made during mapping.
type Fetcher struct {
	Client   *http.Client
	Accept   string
	MaxBytes int64
}

// New returns a Fetcher with the portal defaults (text/turtle, 50 MB,
// 15 s timeout).
func New() *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: DefaultTimeout},
		Accept:   "text/turtle",
		MaxBytes: DefaultMaxBytes,
	}
}

// Get fetches url and returns the body plus the resolved media type. A
// non-empty contentType overrides whatever the server declares; otherwise
// the response content type is used with parameters after ";" stripped.
//
// A HEAD probe runs first; servers rejecting HEAD with 405 or 400 get a
// streamed GET instead. A Content-Length above the cap fails fast, and the
// running total is enforced while streaming regardless of what the header
// claimed.
func (f *Fetcher) Get(ctx context.Context, rawURL, contentType string) ([]byte, string, error) {
	if !strings.HasPrefix(strings.ToLower(rawURL), "http") {
		return nil, "", ErrInvalidInput{URL: rawURL, Reason: "url should start with http"}
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, "", ErrInvalidInput{URL: rawURL, Reason: err.Error()}
	}

	resp, err := f.probe(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	if resp == nil {
		resp, err = f.request(ctx, http.MethodGet, rawURL)
		if err != nil {
			return nil, "", err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", ErrRemote{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var content []byte
	var length int64
	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			length += int64(n)
			if length > f.maxBytes() {
				return nil, "", ErrPayloadTooLarge{URL: rawURL, Limit: f.maxBytes()}
			}
			content = append(content, buf[:n]...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, "", f.classify(rawURL, rerr)
		}
	}

	if contentType == "" {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			contentType = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
		}
	}
	return content, contentType, nil
}

// Exists reports whether url answers a probe without downloading the body.
func (f *Fetcher) Exists(ctx context.Context, rawURL string) (bool, error) {
	if !strings.HasPrefix(strings.ToLower(rawURL), "http") {
		return false, ErrInvalidInput{URL: rawURL, Reason: "url should start with http"}
	}
	resp, err := f.request(ctx, http.MethodHead, rawURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusBadRequest {
		resp, err = f.request(ctx, http.MethodGet, rawURL)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()
	}
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// probe issues the HEAD request. It returns a GET response when the server
// rejected HEAD, nil when the caller should GET itself, or an error when the
// probe already rules the fetch out.
func (f *Fetcher) probe(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := f.request(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusBadRequest {
		resp.Body.Close()
		return f.request(ctx, http.MethodGet, rawURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrRemote{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if length, perr := strconv.ParseInt(cl, 10, 64); perr == nil && length > f.maxBytes() {
			return nil, ErrPayloadTooLarge{URL: rawURL, Limit: f.maxBytes(), Length: length, Claimed: true}
		}
	}
	return nil, nil
}

func (f *Fetcher) request(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, ErrInvalidInput{URL: rawURL, Reason: err.Error()}
	}
	req.Header.Set("Accept", f.accept())
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, f.classify(rawURL, err)
	}
	return resp, nil
}

func (f *Fetcher) classify(rawURL string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrTimeout{URL: rawURL}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{URL: rawURL}
	}
	return ErrUnreachable{URL: rawURL, Cause: err}
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (f *Fetcher) accept() string {
	if f.Accept != "" {
		return f.Accept
	}
	return "text/turtle"
}

func (f *Fetcher) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return DefaultMaxBytes
}

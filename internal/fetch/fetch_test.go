package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opendatazurich/losd-harvester/internal/fetch"
)

func TestGetReturnsBodyAndMediaType(t *testing.T) {
	body := `<http://example.com/d> <http://schema.org/name> "x" .`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/turtle" {
			t.Errorf("accept header = %q", got)
		}
		w.Header().Set("Content-Type", "text/turtle; charset=utf-8")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := fetch.New()
	content, mediaType, err := f.Get(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(content) != body {
		t.Fatalf("unexpected content %q", content)
	}
	if mediaType != "text/turtle" {
		t.Fatalf("expected parameters stripped, got %q", mediaType)
	}
}

func TestGetContentTypeOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	_, mediaType, err := fetch.New().Get(context.Background(), srv.URL, "text/turtle")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mediaType != "text/turtle" {
		t.Fatalf("override lost, got %q", mediaType)
	}
}

func TestGetHeadRejectedFallsBackToGet(t *testing.T) {
	var gets int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets++
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	content, _, err := fetch.New().Get(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("get after 405 probe: %v", err)
	}
	if string(content) != "ok" {
		t.Fatalf("unexpected content %q", content)
	}
	if gets != 1 {
		t.Fatalf("expected exactly one GET, got %d", gets)
	}
}

func TestGetFailsFastOnClaimedLength(t *testing.T) {
	var gets int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
		}
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := fetch.New()
	f.MaxBytes = 100
	_, _, err := f.Get(context.Background(), srv.URL, "")
	var tooLarge fetch.ErrPayloadTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if !tooLarge.Claimed || tooLarge.Length != 1000 {
		t.Fatalf("expected claimed length 1000, got %+v", tooLarge)
	}
	if gets != 0 {
		t.Fatalf("body should not be fetched after the probe, got %d GETs", gets)
	}
}

func TestGetEnforcesCapWhileStreaming(t *testing.T) {
	// Flushing forces chunked encoding so no Content-Length is declared
	// and the running total is the only guard.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		fl := w.(http.Flusher)
		chunk := strings.Repeat("a", 512)
		for i := 0; i < 8; i++ {
			w.Write([]byte(chunk))
			fl.Flush()
		}
	}))
	defer srv.Close()

	f := fetch.New()
	f.MaxBytes = 1024
	_, _, err := f.Get(context.Background(), srv.URL, "")
	var tooLarge fetch.ErrPayloadTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if tooLarge.Claimed {
		t.Fatalf("streaming violation must not be marked claimed: %+v", tooLarge)
	}
}

func TestGetRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := fetch.New().Get(context.Background(), srv.URL, "")
	var remote fetch.ErrRemote
	if !errors.As(err, &remote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	if remote.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", remote.StatusCode)
	}
}

func TestGetRejectsNonHTTPURL(t *testing.T) {
	for _, u := range []string{"ftp://example.com/x", "file:///etc/passwd", ""} {
		_, _, err := fetch.New().Get(context.Background(), u, "")
		var invalid fetch.ErrInvalidInput
		if !errors.As(err, &invalid) {
			t.Fatalf("url %q: expected ErrInvalidInput, got %v", u, err)
		}
	}
}

func TestGetUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, _, err := fetch.New().Get(context.Background(), srv.URL, "")
	var unreachable fetch.ErrUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := fetch.New()
	ok, err := f.Exists(context.Background(), srv.URL+"/here")
	if err != nil || !ok {
		t.Fatalf("expected exists, got %v %v", ok, err)
	}
	ok, err = f.Exists(context.Background(), srv.URL+"/gone")
	if err != nil || ok {
		t.Fatalf("expected missing, got %v %v", ok, err)
	}
}

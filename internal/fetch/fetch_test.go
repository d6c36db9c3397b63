// ABOUTME: Tests for HTTP fetcher with ETag and Last-Modified caching support.
// ABOUTME: Uses httptest to simulate server responses including 304 Not Modified.

package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/tree"
)

func TestFetch_Fresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != fetch.DefaultUserAgent {
			t.Errorf("expected User-Agent %q, got %q", fetch.DefaultUserAgent, ua)
		}
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<rss>test content</rss>"))
	}))
	defer server.Close()

	result, err := fetch.New(0).Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NotModified {
		t.Error("expected NotModified=false for fresh fetch")
	}
	if string(result.Body) != "<rss>test content</rss>" {
		t.Errorf("unexpected body %q", string(result.Body))
	}
	if result.ConditionalGet == nil {
		t.Fatal("expected conditional get info")
	}
	if result.ConditionalGet.ETag != `"abc123"` {
		t.Errorf("expected ETag '\"abc123\"', got %q", result.ConditionalGet.ETag)
	}
	if result.ConditionalGet.LastModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("unexpected LastModified %q", result.ConditionalGet.LastModified)
	}
	if result.ContentHash() == "" {
		t.Error("expected a content hash")
	}
}

func TestFetch_Cached(t *testing.T) {
	etag := `"abc123"`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inm := r.Header.Get("If-None-Match"); inm != etag {
			t.Errorf("expected If-None-Match %q, got %q", etag, inm)
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	cg := &tree.ConditionalGet{ETag: etag, Date: time.Now()}
	result, err := fetch.New(0).Fetch(context.Background(), server.URL, cg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.NotModified {
		t.Error("expected NotModified=true for 304 response")
	}
	if len(result.Body) != 0 {
		t.Errorf("expected empty body for 304 response, got %d bytes", len(result.Body))
	}
}

func TestFetch_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
	}))
	defer server.Close()

	result, err := fetch.New(0).Fetch(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("expected error for 404 response, got nil")
	}
	if !errors.Is(err, syncerr.ErrURLNotFound) {
		t.Errorf("expected ErrURLNotFound, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result for error case, got %+v", result)
	}
}

func TestFetch_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := fetch.New(0).Fetch(context.Background(), server.URL, nil)
	if !syncerr.IsCredentials(err) {
		t.Errorf("expected credentials error, got %v", err)
	}
}

func TestFresh(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	maxAge := 8 * 24 * time.Hour

	if fetch.Fresh(nil, maxAge, now) != nil {
		t.Error("nil info should stay nil")
	}
	recent := &tree.ConditionalGet{ETag: "a", Date: now.Add(-24 * time.Hour)}
	if fetch.Fresh(recent, maxAge, now) != recent {
		t.Error("recent info should be kept")
	}
	old := &tree.ConditionalGet{ETag: "b", Date: now.Add(-9 * 24 * time.Hour)}
	if fetch.Fresh(old, maxAge, now) != nil {
		t.Error("old info should be dropped")
	}
}

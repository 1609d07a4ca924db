package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ptolemies/internal/config"
	"ptolemies/internal/obs"
)

func TestCrawlSourceEmitsDocuments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Home</h1><a href="/page2">next</a></body></html>`))
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>Second page content here.</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := config.SourceConfig{ID: "s1", RootURL: srv.URL + "/", MaxDepth: 3, MaxPages: 10, DelayMS: 1}

	c := New(obs.NewMockMetrics())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	docs, errs := c.CrawlSource(ctx, src, nil)
	var got []string
	for d := range docs {
		got = append(got, d.URL)
	}
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected crawl error: %v", err)
		}
	}
	if len(got) < 1 {
		t.Fatalf("expected at least 1 document, got %d", len(got))
	}
}

func TestCrawlSourceRespectsMaxPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a></body></html>`))
	})
	for _, p := range []string{"/a", "/b", "/c"} {
		p := p
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><body>content ` + p + `</body></html>`))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := config.SourceConfig{ID: "s1", RootURL: srv.URL + "/", MaxDepth: 3, MaxPages: 1, DelayMS: 1}
	c := New(obs.NewMockMetrics())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	docs, _ := c.CrawlSource(ctx, src, nil)
	count := 0
	for range docs {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly 1 document with MaxPages=1, got %d", count)
	}
}

func TestNormalizeURLDropsFragmentAndSortsQuery(t *testing.T) {
	a := normalizeURL("https://Example.com/Path/?b=2&a=1#frag")
	b := normalizeURL("https://example.com/Path?a=1&b=2")
	if a != b {
		t.Errorf("expected normalized URLs to match, got %q vs %q", a, b)
	}
}

package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/fetcher"
	"github.com/nao1215/harvester/internal/model"
)

// memorySink is a Sink that keeps items in a map.
type memorySink struct {
	mu         sync.Mutex
	items      map[model.ItemKey]*model.ContentItem
	stores     int
	prepareErr error
	storeErr   func(*model.ContentItem) error
}

func newMemorySink() *memorySink {
	return &memorySink{items: make(map[model.ItemKey]*model.ContentItem)}
}

func (s *memorySink) Prepare(_ context.Context, _ string) error {
	return s.prepareErr
}

func (s *memorySink) Store(_ context.Context, _ string, item *model.ContentItem) (model.StoreAck, error) {
	if s.storeErr != nil {
		if err := s.storeErr(item); err != nil {
			return model.StoreAck{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores++
	status := model.StoreInserted
	if _, ok := s.items[item.Key()]; ok {
		status = model.StoreUnchanged
	}
	s.items[item.Key()] = item
	return model.StoreAck{ID: item.ID, Status: status}, nil
}

func (s *memorySink) find(kind model.ContentKind, canonicalURL string) *model.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, item := range s.items {
		if k.Kind == kind && k.CanonicalURL == canonicalURL {
			return item
		}
	}
	return nil
}

// site is a test web site that counts requests per path.
type site struct {
	mu   sync.Mutex
	hits map[string]int
	mux  *http.ServeMux
}

func newSite() *site {
	return &site{hits: make(map[string]int), mux: http.NewServeMux()}
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()
	s.mux.ServeHTTP(w, r)
}

func (s *site) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *site) html(path, body string) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body)) //nolint:errcheck // test handler
	})
}

func (s *site) raw(path, contentType string, body []byte) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body) //nolint:errcheck // test handler
	})
}

func links(paths ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, p, p)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestSpider(sink Sink, opts ...SpiderOption) *Spider {
	f := fetcher.New(fetcher.NewHTTPClient(fetcher.ClientOptions{}),
		fetcher.WithBackoff(0, 0),
		fetcher.WithMaxRetries(2),
		fetcher.WithTimeout(2*time.Second),
	)
	return NewSpider(f, sink, opts...)
}

func testSession(seed string, depth int) Session {
	sess := NewSession(seed, "test_ns", model.NewContentFilter())
	sess.MaxDepth = depth
	sess.Concurrency = 2
	return sess
}

func TestSpiderScenarios(t *testing.T) {
	t.Parallel()

	t.Run("seed with three links", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", links("/a", "/b", "/c"))
		s.html("/a", links())
		s.html("/b", links())
		s.html("/c", links())
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if summary.PagesVisited != 4 {
			t.Errorf("expected 4 pages visited, got %d", summary.PagesVisited)
		}
		if n := summary.ItemsByKind[model.KindPageText]; n != 4 {
			t.Errorf("expected 4 page-text items, got %d", n)
		}
		for _, kind := range []model.ContentKind{model.KindImage, model.KindFile, model.KindAudio, model.KindVideo} {
			if n := summary.ItemsByKind[kind]; n != 0 {
				t.Errorf("expected 0 %s items, got %d", kind, n)
			}
		}
		if len(summary.FailedURLs) != 0 {
			t.Errorf("expected no failures, got %v", summary.FailedURLs)
		}
	})

	t.Run("image and pdf resources", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", `<html><body><img src="/photo"><a href="/docs/manual.pdf">manual</a></body></html>`)
		s.raw("/photo", "image/jpeg", []byte("\xff\xd8\xff\xe0fake jpeg"))
		s.raw("/docs/manual.pdf", "application/pdf", []byte("%PDF-1.4 fake"))
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n := summary.ItemsByKind[model.KindImage]; n != 1 {
			t.Errorf("expected 1 image item, got %d", n)
		}
		if n := summary.ItemsByKind[model.KindFile]; n != 1 {
			t.Errorf("expected 1 file item, got %d", n)
		}

		img := sink.find(model.KindImage, server.URL+"/photo")
		if img == nil {
			t.Fatal("expected image item to be stored")
		}
		if img.MimeType != "image/jpeg" || img.Reference != server.URL+"/photo" {
			t.Errorf("unexpected image item: %+v", img)
		}
		if img.ContentHash == "" || img.SizeBytes == 0 {
			t.Errorf("expected hash and size, got %q %d", img.ContentHash, img.SizeBytes)
		}
		if img.Metadata["referrer"] != server.URL+"/" {
			t.Errorf("expected referrer metadata, got %v", img.Metadata)
		}
	})

	t.Run("failing page does not stop the crawl", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", links("/broken", "/ok"))
		s.mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		s.html("/ok", links())
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		failures := summary.Failures(model.StageFetch)
		if len(failures) != 1 {
			t.Fatalf("expected 1 fetch failure, got %v", summary.FailedURLs)
		}
		f := failures[0]
		if f.URL != server.URL+"/broken" || f.StatusCode != http.StatusInternalServerError {
			t.Errorf("unexpected failure: %+v", f)
		}
		if f.Attempts != 3 || s.count("/broken") != 3 {
			t.Errorf("expected 3 attempts, got %d (server saw %d)", f.Attempts, s.count("/broken"))
		}
		if s.count("/ok") != 1 {
			t.Errorf("expected /ok to be fetched once, got %d", s.count("/ok"))
		}
		if summary.PagesVisited != 2 {
			t.Errorf("expected 2 pages visited, got %d", summary.PagesVisited)
		}
	})

	t.Run("max depth zero fetches only the seed", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", `<html><body><a href="/a">a</a><img src="/i.png"></body></html>`)
		s.html("/a", links())
		s.raw("/i.png", "image/png", []byte("\x89PNG"))
		server := httptest.NewServer(s)
		defer server.Close()

		summary, err := newTestSpider(newMemorySink()).Run(context.Background(), testSession(server.URL, 0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if summary.PagesVisited != 1 {
			t.Errorf("expected 1 page visited, got %d", summary.PagesVisited)
		}
		if s.count("/a") != 0 || s.count("/i.png") != 0 {
			t.Errorf("expected no links followed, got /a=%d /i.png=%d", s.count("/a"), s.count("/i.png"))
		}
	})

	t.Run("shared link is fetched once under concurrency", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", links("/a", "/b"))
		for _, p := range []string{"/a", "/b"} {
			s.mux.HandleFunc(p, func(w http.ResponseWriter, _ *http.Request) {
				// keep both pages in flight at the same time
				time.Sleep(50 * time.Millisecond)
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte(links("/c"))) //nolint:errcheck // test handler
			})
		}
		s.html("/c", links("/a", "/b"))
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, p := range []string{"/", "/a", "/b", "/c"} {
			if n := s.count(p); n != 1 {
				t.Errorf("expected %s to be fetched once, got %d", p, n)
			}
		}
		if summary.PagesVisited != 4 {
			t.Errorf("expected 4 pages visited, got %d", summary.PagesVisited)
		}
		if sink.stores != 4 {
			t.Errorf("expected 4 stores, got %d", sink.stores)
		}
	})
}

func TestSpiderBounds(t *testing.T) {
	t.Parallel()

	s := newSite()
	var paths []string
	for i := range 20 {
		p := fmt.Sprintf("/p%d", i)
		paths = append(paths, p)
		s.html(p, links("/deeper"+p))
	}
	s.html("/", links(paths...))
	server := httptest.NewServer(s)
	t.Cleanup(server.Close)

	t.Run("page budget", func(t *testing.T) {
		t.Parallel()

		sess := testSession(server.URL, 3)
		sess.MaxPages = 5
		sess.Concurrency = 4
		summary, err := newTestSpider(newMemorySink()).Run(context.Background(), sess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.PagesVisited > 5 {
			t.Errorf("expected at most 5 pages visited, got %d", summary.PagesVisited)
		}
	})

	t.Run("queue size cap", func(t *testing.T) {
		t.Parallel()

		sess := testSession(server.URL, 1)
		summary, err := newTestSpider(newMemorySink(), WithMaxQueueSize(5)).Run(context.Background(), sess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.FrontierDropped != 15 {
			t.Errorf("expected 15 dropped urls, got %d", summary.FrontierDropped)
		}
		if summary.PagesVisited != 6 {
			t.Errorf("expected 6 pages visited, got %d", summary.PagesVisited)
		}
	})
}

func TestSpiderErrors(t *testing.T) {
	t.Parallel()

	t.Run("seed unreachable", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		summary, err := newTestSpider(newMemorySink()).Run(context.Background(), testSession(server.URL, 1))
		if summary != nil {
			t.Errorf("expected no summary, got %+v", summary)
		}
		var ce *CrawlError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *CrawlError, got %v", err)
		}
		if !errors.Is(err, ErrSeedUnreachable) {
			t.Errorf("expected ErrSeedUnreachable, got %v", err)
		}
		var fe *fetcher.FetchError
		if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
			t.Errorf("expected wrapped 404 FetchError, got %v", err)
		}
	})

	t.Run("namespace unusable", func(t *testing.T) {
		t.Parallel()

		sink := newMemorySink()
		sink.prepareErr = errors.New("read-only")
		_, err := newTestSpider(sink).Run(context.Background(), testSession("http://127.0.0.1:1/", 1))
		if !errors.Is(err, ErrNamespaceUnusable) {
			t.Errorf("expected ErrNamespaceUnusable, got %v", err)
		}

		sess := testSession("http://127.0.0.1:1/", 1)
		sess.Namespace = "bad/namespace"
		_, err = newTestSpider(newMemorySink()).Run(context.Background(), sess)
		if !errors.Is(err, ErrNamespaceUnusable) {
			t.Errorf("expected ErrNamespaceUnusable for invalid namespace, got %v", err)
		}
	})

	t.Run("invalid session", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			mutate func(*Session)
			reason error
		}{
			{"negative depth", func(s *Session) { s.MaxDepth = -1 }, ErrInvalidSession},
			{"zero pages", func(s *Session) { s.MaxPages = 0 }, ErrInvalidSession},
			{"zero concurrency", func(s *Session) { s.Concurrency = 0 }, ErrInvalidSession},
			{"bad scope", func(s *Session) { s.Scope = "galaxy" }, ErrInvalidSession},
			{"bad seed", func(s *Session) { s.SeedURL = "ftp://example.com/" }, ErrSeedUnreachable},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				sess := testSession("http://example.com/", 1)
				tt.mutate(&sess)
				_, err := newTestSpider(newMemorySink()).Run(context.Background(), sess)
				if !errors.Is(err, tt.reason) {
					t.Errorf("expected %v, got %v", tt.reason, err)
				}
			})
		}
	})

	t.Run("store failures are recorded", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", `<html><body><img src="/a.png"><a href="/page">p</a></body></html>`)
		s.raw("/a.png", "image/png", []byte("\x89PNG"))
		s.html("/page", links())
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		sink.storeErr = func(item *model.ContentItem) error {
			if item.Kind == model.KindImage {
				return errors.New("disk full")
			}
			return nil
		}
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		failures := summary.Failures(model.StageStore)
		if len(failures) != 1 || failures[0].Kind != model.KindImage {
			t.Fatalf("expected 1 image store failure, got %v", summary.FailedURLs)
		}
		if !strings.Contains(failures[0].Reason, "disk full") {
			t.Errorf("expected reason to mention the cause, got %q", failures[0].Reason)
		}
		if n := summary.ItemsByKind[model.KindPageText]; n != 2 {
			t.Errorf("expected 2 page-text items, got %d", n)
		}
	})
}

func TestSpiderCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSite()
	s.html("/", links("/slow1", "/slow2", "/slow3"))
	for _, p := range []string{"/slow1", "/slow2", "/slow3"} {
		s.mux.HandleFunc(p, func(_ http.ResponseWriter, r *http.Request) {
			cancel()
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})
	}
	server := httptest.NewServer(s)
	defer server.Close()

	summary, err := newTestSpider(newMemorySink()).Run(ctx, testSession(server.URL, 1))
	if err != nil {
		t.Fatalf("expected partial summary, got error %v", err)
	}
	if !summary.Cancelled {
		t.Error("expected summary to be marked cancelled")
	}
	if summary.PagesVisited != 1 {
		t.Errorf("expected only the seed to be visited, got %d", summary.PagesVisited)
	}
	if len(summary.FailedURLs) != 0 {
		t.Errorf("expected cancelled fetches not to be failures, got %v", summary.FailedURLs)
	}
}

type denyPaths []string

func (d denyPaths) Allowed(_ context.Context, u *url.URL) bool {
	for _, p := range d {
		if strings.HasPrefix(u.Path, p) {
			return false
		}
	}
	return true
}

type tagEnricher struct{}

func (tagEnricher) Enrich(_ context.Context, item *model.ContentItem, body []byte) error {
	if item.Kind == model.KindImage {
		return errors.New("cannot decode")
	}
	item.SetMetadata("body_len", fmt.Sprint(len(body)))
	return nil
}

func TestSpiderFeatures(t *testing.T) {
	t.Parallel()

	t.Run("content filter", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", `<html><body><img src="/a.png"><a href="/doc.pdf">d</a><a href="/next">n</a></body></html>`)
		s.raw("/a.png", "image/png", []byte("\x89PNG"))
		s.raw("/doc.pdf", "application/pdf", []byte("%PDF"))
		s.html("/next", `<html><body><img src="/b.png"></body></html>`)
		s.raw("/b.png", "image/png", []byte("\x89PNG"))
		server := httptest.NewServer(s)
		defer server.Close()

		filter, err := model.ParseContentFilter("images")
		if err != nil {
			t.Fatal(err)
		}
		sess := testSession(server.URL, 2)
		sess.Filter = filter

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), sess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n := summary.ItemsByKind[model.KindImage]; n != 2 {
			t.Errorf("expected 2 images, got %d", n)
		}
		if summary.TotalItems() != 2 {
			t.Errorf("expected only images to be stored, got %v", summary.ItemsByKind)
		}
		if s.count("/doc.pdf") != 0 {
			t.Error("expected hinted file resource not to be fetched")
		}
		if summary.FilteredOut != 2 {
			t.Errorf("expected 2 filtered pages, got %d", summary.FilteredOut)
		}
	})

	t.Run("redirect target is processed once", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", links("/old", "/new"))
		s.mux.Handle("/old", http.RedirectHandler("/new", http.StatusMovedPermanently))
		s.html("/new", links())
		server := httptest.NewServer(s)
		defer server.Close()

		sess := testSession(server.URL, 1)
		sess.Concurrency = 1
		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), sess)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if s.count("/new") != 1 {
			t.Errorf("expected /new to be fetched once, got %d", s.count("/new"))
		}
		if n := summary.ItemsByKind[model.KindPageText]; n != 2 {
			t.Errorf("expected 2 page-text items, got %d", n)
		}
		item := sink.find(model.KindPageText, server.URL+"/new")
		if item == nil || item.SourceURL != server.URL+"/old" {
			t.Errorf("expected /new item with source /old, got %+v", item)
		}
	})

	t.Run("robots and enrichers", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", `<html><body><a href="/private/x">x</a><a href="/public">p</a><img src="/i.png"></body></html>`)
		s.html("/private/x", links())
		s.html("/public", links())
		s.raw("/i.png", "image/png", []byte("\x89PNG"))
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		spider := newTestSpider(sink, WithRobots(denyPaths{"/private"}), WithEnrichers(tagEnricher{}))
		summary, err := spider.Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if summary.SkippedByRobots != 1 || s.count("/private/x") != 0 {
			t.Errorf("expected /private/x to be skipped, got skipped=%d hits=%d",
				summary.SkippedByRobots, s.count("/private/x"))
		}
		if summary.Warnings != 1 {
			t.Errorf("expected 1 enrich warning, got %d", summary.Warnings)
		}
		if n := summary.ItemsByKind[model.KindImage]; n != 1 {
			t.Errorf("expected image to be stored despite enrich error, got %d", n)
		}
		page := sink.find(model.KindPageText, server.URL+"/public")
		if page == nil || page.Metadata["body_len"] == "" {
			t.Errorf("expected enriched page, got %+v", page)
		}
	})

	t.Run("robots disallowed seed", func(t *testing.T) {
		t.Parallel()

		spider := newTestSpider(newMemorySink(), WithRobots(denyPaths{"/"}))
		_, err := spider.Run(context.Background(), testSession("http://127.0.0.1:1/", 1))
		if !errors.Is(err, ErrSeedUnreachable) || !errors.Is(err, ErrDisallowedByRobots) {
			t.Errorf("expected seed unreachable by robots, got %v", err)
		}
	})

	t.Run("sitemap seeding", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", links())
		s.html("/hidden", links())
		server := httptest.NewServer(s)
		defer server.Close()
		s.raw("/sitemap.xml", "application/xml", []byte(`<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>`+server.URL+`/hidden</loc></url></urlset>`))

		summary, err := newTestSpider(newMemorySink(), WithSitemap(true)).Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.count("/hidden") != 1 {
			t.Errorf("expected sitemap url to be fetched, got %d", s.count("/hidden"))
		}
		if summary.PagesVisited != 2 {
			t.Errorf("expected 2 pages visited, got %d", summary.PagesVisited)
		}
	})
}

// requestLog records the request URIs a test server receives.
type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.uris = append(l.uris, r.URL.RequestURI())
		l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (l *requestLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.uris)
}

func TestSpiderTraversal(t *testing.T) {
	t.Parallel()

	t.Run("redirect out of scope is neither stored nor followed", func(t *testing.T) {
		t.Parallel()

		other := newSite()
		other.html("/page", links("/next"))
		other.html("/next", links())
		otherServer := httptest.NewServer(other)
		defer otherServer.Close()

		s := newSite()
		s.html("/", links("/go"))
		s.mux.Handle("/go", http.RedirectHandler(otherServer.URL+"/page", http.StatusFound))
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if item := sink.find(model.KindPageText, otherServer.URL+"/page"); item != nil {
			t.Errorf("expected off-scope page not to be stored, got %+v", item)
		}
		if other.count("/next") != 0 {
			t.Errorf("expected off-scope links not to be followed, got %d requests", other.count("/next"))
		}
		if summary.SkippedByScope != 1 {
			t.Errorf("expected 1 url skipped by scope, got %d", summary.SkippedByScope)
		}
		if n := summary.ItemsByKind[model.KindPageText]; n != 1 {
			t.Errorf("expected only the seed to be stored, got %d page-text items", n)
		}
	})

	t.Run("redirect of the seed moves the origin", func(t *testing.T) {
		t.Parallel()

		target := newSite()
		target.html("/home", links("/a"))
		target.html("/a", links())
		targetServer := httptest.NewServer(target)
		defer targetServer.Close()

		s := newSite()
		s.mux.Handle("/", http.RedirectHandler(targetServer.URL+"/home", http.StatusFound))
		server := httptest.NewServer(s)
		defer server.Close()

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if summary.SkippedByScope != 0 {
			t.Errorf("expected no scope skips, got %d", summary.SkippedByScope)
		}
		if sink.find(model.KindPageText, targetServer.URL+"/a") == nil {
			t.Error("expected link of the redirected seed to be stored")
		}
	})

	t.Run("queries with semicolons are fetched as linked", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", links("/search?q=a;b", "/search?q=c;d"))
		s.html("/search", links())
		var log requestLog
		server := httptest.NewServer(log.wrap(s))
		defer server.Close()

		sink := newMemorySink()
		summary, err := newTestSpider(sink).Run(context.Background(), testSession(server.URL, 1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		uris := log.list()
		for _, want := range []string{"/search?q=a;b", "/search?q=c;d"} {
			if !slices.Contains(uris, want) {
				t.Errorf("expected request %s, got %v", want, uris)
			}
			if sink.find(model.KindPageText, server.URL+want) == nil {
				t.Errorf("expected item for %s", want)
			}
		}
		if n := summary.ItemsByKind[model.KindPageText]; n != 3 {
			t.Errorf("expected 3 page-text items, got %d", n)
		}
	})

	t.Run("urls are claimed in document order", func(t *testing.T) {
		t.Parallel()

		s := newSite()
		s.html("/", `<html><body><a href="/first">1</a><img src="/logo.png"><a href="/last">2</a></body></html>`)
		s.html("/first", links())
		s.html("/last", links())
		s.raw("/logo.png", "image/png", []byte("\x89PNG"))
		var log requestLog
		server := httptest.NewServer(log.wrap(s))
		defer server.Close()

		sess := testSession(server.URL, 1)
		sess.Concurrency = 1
		if _, err := newTestSpider(newMemorySink()).Run(context.Background(), sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"/", "/first", "/logo.png", "/last"}
		if got := log.list(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}

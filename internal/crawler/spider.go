package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/harvester/internal/fetcher"
	"github.com/nao1215/harvester/internal/model"
)

// Session defaults.
const (
	DefaultMaxDepth    = 3
	DefaultMaxPages    = 100
	DefaultConcurrency = 4
)

// Fetcher downloads one URL, retrying transient failures internally.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// Sink persists content items. Implementations must be safe for concurrent
// use and idempotent on (namespace, kind, canonical URL).
type Sink interface {
	// Prepare checks that namespace can be written to. It is called once
	// before the seed is fetched.
	Prepare(ctx context.Context, namespace string) error

	// Store inserts or updates item under namespace.
	Store(ctx context.Context, namespace string, item *model.ContentItem) (model.StoreAck, error)
}

// RobotsChecker tells whether a URL may be fetched.
type RobotsChecker interface {
	Allowed(ctx context.Context, u *url.URL) bool
}

// Enricher adds metadata to an item before it is stored. body is the raw
// response body. Errors are logged and counted as warnings.
type Enricher interface {
	Enrich(ctx context.Context, item *model.ContentItem, body []byte) error
}

// Session describes one crawl.
type Session struct {
	// ID identifies the session in logs and history. Generated when empty.
	ID string

	// SeedURL is where the crawl starts.
	SeedURL string

	// Namespace is the storage partition results are written to.
	Namespace string

	// Filter selects which kinds are persisted. Pages are fetched for
	// traversal regardless of the filter.
	Filter model.ContentFilter

	// Scope decides which hosts are in bounds.
	Scope ScopeRule

	// MaxDepth is the number of hops followed from the seed. 0 fetches
	// the seed only.
	MaxDepth int

	// MaxPages caps the number of URLs claimed from the frontier.
	MaxPages int

	// Concurrency is the number of workers.
	Concurrency int
}

// NewSession returns a session with default limits.
func NewSession(seedURL, namespace string, filter model.ContentFilter) Session {
	return Session{
		SeedURL:     seedURL,
		Namespace:   namespace,
		Filter:      filter,
		Scope:       ScopeSameOrigin,
		MaxDepth:    DefaultMaxDepth,
		MaxPages:    DefaultMaxPages,
		Concurrency: DefaultConcurrency,
	}
}

// validate checks the session and returns the canonical seed.
func (s *Session) validate() (*url.URL, error) {
	if s.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must not be negative: %d", s.MaxDepth)
	}
	if s.MaxPages < 1 {
		return nil, fmt.Errorf("max pages must be at least 1: %d", s.MaxPages)
	}
	if s.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1: %d", s.Concurrency)
	}
	if _, err := ParseScopeRule(string(s.Scope)); err != nil {
		return nil, err
	}
	if err := model.ValidateNamespace(s.Namespace); err != nil {
		return nil, &CrawlError{Reason: ErrNamespaceUnusable, Err: err}
	}
	seed, err := model.Canonicalize(s.SeedURL, nil)
	if err != nil {
		return nil, &CrawlError{Reason: ErrSeedUnreachable, Err: err}
	}
	return seed, nil
}

// Spider runs crawl sessions. A Spider holds only configuration, so one
// value can run many sessions, one after another or at the same time.
type Spider struct {
	fetcher   Fetcher
	sink      Sink
	robots    RobotsChecker
	enrichers []Enricher
	logger    *slog.Logger

	downloadExts   []string
	allowedHosts   []string
	ignorePatterns []string
	followPatterns []string
	maxQueueSize   int
	useSitemap     bool
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithRobots makes the spider skip URLs disallowed by robots.txt.
func WithRobots(r RobotsChecker) SpiderOption {
	return func(s *Spider) {
		s.robots = r
	}
}

// WithEnrichers adds item enrichers, run in order before storing.
func WithEnrichers(enrichers ...Enricher) SpiderOption {
	return func(s *Spider) {
		s.enrichers = append(s.enrichers, enrichers...)
	}
}

// WithDownloadExtensions sets the anchor extensions treated as file downloads.
func WithDownloadExtensions(exts []string) SpiderOption {
	return func(s *Spider) {
		s.downloadExts = exts
	}
}

// WithAllowedHosts adds hosts that are in scope whatever the scope rule.
func WithAllowedHosts(hosts []string) SpiderOption {
	return func(s *Spider) {
		s.allowedHosts = hosts
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts crawling to URL paths matching at least one
// pattern. An empty slice allows every path.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithMaxQueueSize caps the number of queued URLs. Zero means unlimited.
func WithMaxQueueSize(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 0 {
			s.maxQueueSize = n
		}
	}
}

// WithSitemap seeds the frontier from /sitemap.xml of the seed origin.
func WithSitemap(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.useSitemap = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches with f and stores into sink.
func NewSpider(f Fetcher, sink Sink, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      f,
		sink:         sink,
		logger:       slog.Default(),
		maxQueueSize: DefaultMaxQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run is the state of one session.
type run struct {
	spider     *Spider
	session    Session
	seed       *url.URL
	frontier   *Frontier
	scope      *Scope
	extractors *ExtractorSet

	mu      sync.Mutex
	summary *model.CrawlSummary
}

// Run crawls sess and returns its summary.
//
// The only errors are *CrawlError values: the session is invalid, the
// namespace is unusable or the seed cannot be fetched. Failures of other
// URLs are recorded in the summary. Cancelling ctx stops new claims and
// returns the partial summary with Cancelled set.
func (s *Spider) Run(ctx context.Context, sess Session) (*model.CrawlSummary, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Scope == "" {
		sess.Scope = ScopeSameOrigin
	}

	seed, err := sess.validate()
	if err != nil {
		var ce *CrawlError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &CrawlError{Reason: ErrInvalidSession, Err: err}
	}

	if err := s.sink.Prepare(ctx, sess.Namespace); err != nil {
		return nil, &CrawlError{Reason: ErrNamespaceUnusable, Err: err}
	}

	ctx = slogctx.Append(ctx, "session", sess.ID, "namespace", sess.Namespace)

	scope := NewScope(seed, sess.Scope, ScopeConfig{
		AllowedHosts:   s.allowedHosts,
		IgnorePatterns: s.ignorePatterns,
		FollowPatterns: s.followPatterns,
	})
	r := &run{
		spider:     s,
		session:    sess,
		seed:       seed,
		frontier:   NewFrontier(sess.MaxDepth, sess.MaxPages, s.maxQueueSize),
		scope:      scope,
		extractors: NewExtractorSet(scope, s.downloadExts),
		summary:    model.NewCrawlSummary(sess.ID, seed.String(), sess.Namespace, sess.Filter),
	}

	stop := context.AfterFunc(ctx, r.frontier.Close)
	defer stop()

	s.logger.InfoContext(ctx, "crawl started",
		slog.String("seed", seed.String()),
		slog.String("filter", sess.Filter.String()),
		slog.String("scope", string(sess.Scope)),
		slog.Int("max_depth", sess.MaxDepth),
		slog.Int("max_pages", sess.MaxPages),
		slog.Int("concurrency", sess.Concurrency))

	// The seed is processed alone: if it fails there is nothing to crawl
	// and the session is aborted.
	r.frontier.Push(Entry{URL: seed.String()})
	entry, ok := r.frontier.Claim()
	if !ok {
		return r.finish(ctx), nil
	}
	seedErr := r.process(ctx, entry)
	r.frontier.Complete()
	if seedErr != nil {
		if ctx.Err() != nil {
			return r.finish(ctx), nil
		}
		s.logger.ErrorContext(ctx, "seed unreachable",
			slog.String("url", entry.URL),
			slog.String("error", seedErr.Error()))
		return nil, &CrawlError{Reason: ErrSeedUnreachable, Err: seedErr}
	}

	if s.useSitemap {
		r.seedSitemap(ctx)
	}

	var g errgroup.Group
	for range sess.Concurrency {
		g.Go(func() error {
			for {
				e, ok := r.frontier.Claim()
				if !ok {
					return nil
				}
				_ = r.process(ctx, e) //nolint:errcheck // failures are recorded in the summary
				r.frontier.Complete()
			}
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	return r.finish(ctx), nil
}

// finish fills the final counters.
func (r *run) finish(ctx context.Context) *model.CrawlSummary {
	stats := r.frontier.Stats()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary.FrontierDropped = stats.Dropped
	r.summary.Cancelled = ctx.Err() != nil
	r.summary.FinishedAt = time.Now().UTC()

	r.spider.logger.InfoContext(ctx, "crawl finished",
		slog.Int("pages_visited", r.summary.PagesVisited),
		slog.Int("items", r.summary.TotalItems()),
		slog.Int("failed", len(r.summary.FailedURLs)),
		slog.Int("frontier_dropped", stats.Dropped),
		slog.Bool("cancelled", r.summary.Cancelled),
		slog.Duration("duration", r.summary.Duration()))
	return r.summary
}

// update mutates the summary under the run mutex.
func (r *run) update(fn func(*model.CrawlSummary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.summary)
}

// process handles one claimed entry. It returns the fetch error, if any,
// after recording it; the caller only needs it for the seed.
func (r *run) process(ctx context.Context, e Entry) error {
	s := r.spider

	u, err := url.Parse(e.URL)
	if err != nil {
		return err
	}

	if s.robots != nil && !s.robots.Allowed(ctx, u) {
		r.update(func(sum *model.CrawlSummary) { sum.SkippedByRobots++ })
		s.logger.DebugContext(ctx, "disallowed by robots.txt", slog.String("url", e.URL))
		return ErrDisallowedByRobots
	}

	res, err := s.fetcher.Fetch(ctx, e.URL)
	if err != nil {
		if ctx.Err() == nil {
			r.recordFetchFailure(ctx, e, err)
		}
		return err
	}
	r.update(func(sum *model.CrawlSummary) { sum.PagesVisited++ })

	final := u
	if res.Redirected() {
		if !r.frontier.MarkVisited(res.FinalURL) {
			s.logger.DebugContext(ctx, "redirect target already visited",
				slog.String("url", e.URL),
				slog.String("final_url", res.FinalURL))
			return nil
		}
		if parsed, err := url.Parse(res.FinalURL); err == nil {
			final = parsed
		}
		// A seed redirect moves the origin. Any other redirect must land
		// in scope to be stored or followed.
		if e.Depth == 0 {
			r.scope.AddOrigin(final)
		} else if !r.scope.Allows(final) {
			r.update(func(sum *model.CrawlSummary) { sum.SkippedByScope++ })
			s.logger.DebugContext(ctx, "redirect target out of scope",
				slog.String("url", e.URL),
				slog.String("final_url", res.FinalURL))
			return nil
		}
	}

	base := final
	if parsed, err := url.Parse(res.ResponseURL); err == nil && parsed.IsAbs() {
		base = parsed
	}

	doc := DetectDocument(res.MimeType, res.Body)
	body := res.Body
	if doc == DocHTML {
		body = DecodeHTML(res.Body, res.MimeType, res.Charset)
	}

	if doc.IsTraversal() {
		r.discover(ctx, e, doc, body, base)
		return nil
	}

	if doc == DocHTML {
		r.discover(ctx, e, doc, body, base)
	}

	mimeType := res.MimeType
	if doc == DocHTML && ambiguousMIME[mimeType] {
		mimeType = "text/html"
	}
	kind := Classify(res.FinalURL, mimeType, e.Hint)
	if !r.session.Filter.Allows(kind) {
		r.update(func(sum *model.CrawlSummary) { sum.FilteredOut++ })
		return nil
	}
	r.store(ctx, e, res, kind, body, base)
	return nil
}

// discover extracts links and resources and queues them one level deeper.
func (r *run) discover(ctx context.Context, e Entry, doc DocumentType, body []byte, base *url.URL) {
	if e.Depth >= r.session.MaxDepth {
		return
	}
	s := r.spider

	x := r.extractors.Extract(doc, body, base)
	if n := len(x.Warnings); n > 0 {
		r.update(func(sum *model.CrawlSummary) { sum.Warnings += n })
		s.logger.DebugContext(ctx, "extraction warnings",
			slog.String("url", e.URL),
			slog.Int("count", n),
			slog.String("first", x.Warnings[0].Error()))
	}

	queued := 0
	for _, d := range x.Discovered {
		if !d.Link && d.Hint.IsValid() && !r.session.Filter.Allows(d.Hint) {
			continue
		}
		if r.push(ctx, Entry{URL: d.URL, Depth: e.Depth + 1, Hint: d.Hint, Referrer: e.URL}) {
			queued++
		}
	}

	s.logger.DebugContext(ctx, "discovered",
		slog.String("url", e.URL),
		slog.String("document", doc.String()),
		slog.Int("links", len(x.Links)),
		slog.Int("resources", len(x.Resources)),
		slog.Int("queued", queued))
}

// push queues e and reports whether it was accepted.
func (r *run) push(ctx context.Context, e Entry) bool {
	switch r.frontier.Push(e) {
	case Queued:
		return true
	case QueueFull:
		r.spider.logger.DebugContext(ctx, "frontier full, dropping url", slog.String("url", e.URL))
	}
	return false
}

// seedSitemap queues the URLs listed in the seed origin's sitemap.
func (r *run) seedSitemap(ctx context.Context) {
	if r.session.MaxDepth < 1 {
		return
	}
	s := r.spider
	sitemapURL := model.Origin(r.seed) + "/sitemap.xml"

	res, err := s.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		s.logger.DebugContext(ctx, "no sitemap", slog.String("url", sitemapURL), slog.String("error", err.Error()))
		return
	}
	base, err := url.Parse(res.ResponseURL)
	if err != nil || !base.IsAbs() {
		base = r.seed
	}
	r.discover(ctx, Entry{URL: sitemapURL}, DocSitemap, res.Body, base)
}

// store builds the item for a fetched resource and hands it to the sink.
func (r *run) store(ctx context.Context, e Entry, res *fetcher.Result, kind model.ContentKind, body []byte, base *url.URL) {
	s := r.spider
	ns := r.session.Namespace

	item := model.NewContentItem(ns, kind, res.FinalURL)
	if res.Redirected() {
		item.SourceURL = e.URL
	}
	item.MimeType = res.MimeType
	if item.MimeType == "" {
		item.MimeType = res.SniffedType()
	}
	item.ComputeHash(res.Body)
	item.Truncated = res.Truncated
	item.Depth = e.Depth
	item.FetchedAt = res.FetchedAt

	if kind == model.KindPageText {
		text := ExtractText(body, base)
		item.Payload = text.Text
		item.Title = text.Title
		item.SetMetadata("description", text.Description)
		item.SetMetadata("language", text.Language)
		item.SetMetadata("byline", text.Byline)
		item.SetMetadata("site_name", text.SiteName)
	} else {
		item.Reference = res.FinalURL
	}
	item.SetMetadata("referrer", e.Referrer)

	// Work already fetched is stored even when the session is cancelled.
	storeCtx := context.WithoutCancel(ctx)

	for _, en := range s.enrichers {
		if err := en.Enrich(storeCtx, item, res.Body); err != nil {
			r.update(func(sum *model.CrawlSummary) { sum.Warnings++ })
			s.logger.WarnContext(ctx, "enrich failed",
				slog.String("url", item.CanonicalURL),
				slog.String("kind", kind.String()),
				slog.String("error", err.Error()))
		}
	}

	ack, err := s.sink.Store(storeCtx, ns, item)
	if err != nil {
		serr := &StoreError{URL: item.CanonicalURL, Kind: kind, Err: err}
		r.update(func(sum *model.CrawlSummary) {
			sum.RecordFailure(model.FailedURL{
				URL:    item.CanonicalURL,
				Stage:  model.StageStore,
				Kind:   kind,
				Reason: serr.Error(),
			})
		})
		s.logger.ErrorContext(ctx, "store failed",
			slog.String("url", item.CanonicalURL),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		return
	}

	r.update(func(sum *model.CrawlSummary) { sum.RecordItem(kind) })
	s.logger.DebugContext(ctx, "stored item",
		slog.String("url", item.CanonicalURL),
		slog.String("kind", kind.String()),
		slog.String("id", ack.ID),
		slog.String("status", ack.Status.String()))
}

// recordFetchFailure adds a fetch failure to the summary.
func (r *run) recordFetchFailure(ctx context.Context, e Entry, err error) {
	failure := model.FailedURL{
		URL:        e.URL,
		Stage:      model.StageFetch,
		StatusCode: fetcher.StatusCode(err),
		Transient:  fetcher.IsTransient(err),
		Reason:     err.Error(),
	}
	if e.Hint.IsValid() {
		failure.Kind = e.Hint
	}
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		failure.Attempts = fe.Attempts
	}
	r.update(func(sum *model.CrawlSummary) { sum.RecordFailure(failure) })

	r.spider.logger.WarnContext(ctx, "fetch failed",
		slog.String("url", e.URL),
		slog.Int("depth", e.Depth),
		slog.Int("status", failure.StatusCode),
		slog.Int("attempts", failure.Attempts),
		slog.String("error", err.Error()))
}

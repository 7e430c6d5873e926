package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/database"
	"github.com/nao1215/harvester/internal/fetcher"
	"github.com/nao1215/harvester/internal/metadata"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/tor"
)

// Service runs crawl sessions into a store and reads results back.
// It is safe for concurrent use.
type Service struct {
	cfg    *config.Config
	store  database.Store
	dialer fetcher.ContextDialer
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger passed down to the fetcher and the crawler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDialer routes every session through d, typically a *tor.Proxy.
func WithDialer(d fetcher.ContextDialer) Option {
	return func(s *Service) {
		s.dialer = d
	}
}

// NewService creates a Service. The store stays owned by the caller.
func NewService(cfg *config.Config, store database.Store, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawl harvests seed into the namespace of the configured output
// directory and records the session in the history when the store keeps
// one. Errors other than a *crawler.CrawlError come from setting the
// session up.
func (s *Service) Crawl(ctx context.Context, seed string) (*model.CrawlSummary, error) {
	seedURL, err := model.Canonicalize(seed, nil)
	if err != nil {
		return nil, &crawler.CrawlError{Reason: crawler.ErrSeedUnreachable, Err: err}
	}
	if tor.IsOnionHost(seedURL.Host) {
		if err := tor.ValidateOnionHost(seedURL.Host); err != nil {
			return nil, fmt.Errorf("invalid seed %s: %w", seed, err)
		}
		if s.dialer == nil {
			return nil, fmt.Errorf("invalid seed %s: %w", seed, ErrOnionNeedsProxy)
		}
	}

	site := s.siteConfig(seedURL)
	sess, err := s.session(seedURL, site)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	client := fetcher.NewHTTPClient(fetcher.ClientOptions{
		MaxConnsPerHost:    sess.Concurrency,
		Dialer:             s.dialer,
		InsecureSkipVerify: tor.IsOnionHost(seedURL.Host),
		Cookie:             site.Cookie,
		Headers:            site.Headers,
	})
	defer client.CloseIdleConnections()

	f := fetcher.New(client,
		fetcher.WithTimeout(s.cfg.RequestTimeout),
		fetcher.WithMaxRetries(s.cfg.MaxRetries),
		fetcher.WithUserAgent(s.cfg.UserAgent),
		fetcher.WithMaxBodySize(s.cfg.MaxBodySize),
		fetcher.WithLimiter(fetcher.NewHostLimiter(s.cfg.CrawlDelay)),
		fetcher.WithLogger(s.logger),
	)

	spider := crawler.NewSpider(f, s.store, s.spiderOptions(f, site)...)
	summary, err := spider.Run(ctx, sess)
	if err != nil {
		return nil, err
	}

	if history, ok := s.store.(database.SessionStore); ok {
		// The session is recorded even when the crawl was cancelled.
		if err := history.SaveSession(context.WithoutCancel(ctx), summary); err != nil {
			s.logger.WarnContext(ctx, "failed to save session",
				slog.String("session", summary.SessionID),
				slog.String("error", err.Error()))
		}
	}
	return summary, nil
}

// siteConfig returns the per-site settings of the seed host.
func (s *Service) siteConfig(seed *url.URL) config.SiteConfig {
	if s.cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	return s.cfg.SiteConfigs.GetSiteConfig(seed.Hostname())
}

// session builds the crawl session of a seed, applying site overrides.
func (s *Service) session(seed *url.URL, site config.SiteConfig) (crawler.Session, error) {
	ns, err := s.cfg.Namespace()
	if err != nil {
		return crawler.Session{}, err
	}

	filterName := s.cfg.ContentFilter
	if site.ContentType != "" {
		filterName = site.ContentType
	}
	filter, err := model.ParseContentFilter(filterName)
	if err != nil {
		return crawler.Session{}, err
	}

	scope, err := crawler.ParseScopeRule(s.cfg.Scope)
	if err != nil {
		return crawler.Session{}, err
	}

	sess := crawler.NewSession(seed.String(), ns, filter)
	sess.Scope = scope
	sess.MaxDepth = s.cfg.MaxDepth
	sess.MaxPages = s.cfg.MaxPages
	sess.Concurrency = s.cfg.Concurrency
	if site.Depth != nil {
		sess.MaxDepth = *site.Depth
	}
	if site.MaxPages > 0 {
		sess.MaxPages = site.MaxPages
	}
	return sess, nil
}

// spiderOptions translates the configuration into crawler options.
func (s *Service) spiderOptions(f *fetcher.Fetcher, site config.SiteConfig) []crawler.SpiderOption {
	enrichers := []crawler.Enricher{metadata.New(metadata.WithLogger(s.logger))}
	if s.cfg.SaveFiles {
		enrichers = append(enrichers, database.NewFileWriter(s.cfg.OutputDir))
	}

	opts := []crawler.SpiderOption{
		crawler.WithLogger(s.logger),
		crawler.WithEnrichers(enrichers...),
		crawler.WithAllowedHosts(site.AllowedHosts),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithMaxQueueSize(s.cfg.MaxQueueSize),
		crawler.WithSitemap(s.cfg.UseSitemap),
	}
	if len(s.cfg.DownloadExtensions) > 0 {
		opts = append(opts, crawler.WithDownloadExtensions(s.cfg.DownloadExtensions))
	}
	if s.cfg.RespectRobots {
		opts = append(opts, crawler.WithRobots(fetcher.NewRobotsPolicy(f, s.logger)))
	}
	return opts
}

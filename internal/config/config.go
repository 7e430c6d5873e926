package config

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/harvester/internal/model"
)

// Default configuration values.
const (
	// DefaultMaxDepth is the number of link hops followed from the seed.
	DefaultMaxDepth = 3

	// DefaultMaxPages caps the URLs claimed per session so a site that
	// generates pages endlessly still terminates.
	DefaultMaxPages = 100

	// DefaultConcurrency is the worker count of one session.
	DefaultConcurrency = 4

	// DefaultRequestTimeout bounds a single HTTP attempt.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries after a transient failure.
	DefaultMaxRetries = 3

	// DefaultMaxQueueSize caps the frontier independently of MaxPages.
	DefaultMaxQueueSize = 10000

	// DefaultBatchSize is the number of seeds crawled at the same time.
	DefaultBatchSize = 2

	// DefaultCrawlDelay is the minimum delay between two requests to one host.
	DefaultCrawlDelay = 250 * time.Millisecond

	// DefaultMaxBodySize limits the body bytes read per response. Larger
	// bodies are truncated and flagged.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies the harvester in HTTP requests.
	DefaultUserAgent = "Mozilla/5.0 (compatible; harvester/1.0; +https://github.com/nao1215/harvester)"

	// DefaultScope keeps a crawl on the seed's scheme, host and port.
	DefaultScope = "same-origin"

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "harvester"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// scopeRules lists the accepted scope rule names.
var scopeRules = []string{"same-origin", "same-host", "same-site", "any"}

// Config holds all configuration options of a harvester run.
// It is populated from CLI flags and the optional configuration file and
// passed down explicitly; nothing reads global state.
type Config struct {
	// SeedURLs are the start URLs. Each seed is crawled in its own session.
	SeedURLs []string

	// OutputDir names the result set. The storage namespace is derived
	// from it and payload files are written below it.
	OutputDir string

	// ContentFilter selects the persisted collection:
	// content, images, files, audio, videos or all.
	ContentFilter string

	// MaxDepth is the maximum number of link hops from the seed.
	// Zero fetches only the seed.
	MaxDepth int

	// MaxPages caps the URLs claimed per session.
	MaxPages int

	// Concurrency is the number of workers per session.
	Concurrency int

	// RequestTimeout bounds each HTTP attempt.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries after a transient fetch failure.
	MaxRetries int

	// MaxQueueSize caps the frontier. Discovered URLs beyond it are dropped.
	MaxQueueSize int

	// Scope is the traversal rule: same-origin, same-host, same-site or any.
	Scope string

	// DownloadExtensions overrides the anchor extensions treated as files.
	DownloadExtensions []string

	// CrawlDelay is the minimum delay between requests to one host.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// RespectRobots makes the crawler honor robots.txt.
	RespectRobots bool

	// UseSitemap seeds the frontier from <origin>/sitemap.xml.
	UseSitemap bool

	// SaveFiles writes binary payloads below OutputDir.
	SaveFiles bool

	// Backend selects the result sink: sqlite, redis or memory.
	Backend string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// RedisURL is the redis:// URL used by the redis backend.
	RedisURL string

	// ProxyAddress routes all traffic through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes all traffic through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// BatchSize is the number of seeds crawled at the same time.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs writes logs as JSON lines.
	JSONLogs bool

	// JSONReport prints the crawl summary as JSON.
	JSONReport bool

	// MarkdownReport prints the crawl summary as Markdown.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// ConfigFilePath is the path of the configuration file.
	// If empty, .harvester is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the per-host settings loaded from the configuration file.
	SiteConfigs *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ContentFilter:     model.FilterAll,
		MaxDepth:          DefaultMaxDepth,
		MaxPages:          DefaultMaxPages,
		Concurrency:       DefaultConcurrency,
		RequestTimeout:    DefaultRequestTimeout,
		MaxRetries:        DefaultMaxRetries,
		MaxQueueSize:      DefaultMaxQueueSize,
		Scope:             DefaultScope,
		CrawlDelay:        DefaultCrawlDelay,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RespectRobots:     true,
		Backend:           BackendSQLite,
		TorStartupTimeout: DefaultTorStartupTimeout,
		BatchSize:         DefaultBatchSize,
	}
}

// Namespace returns the storage namespace derived from OutputDir.
func (c *Config) Namespace() (string, error) {
	return model.NamespaceFromDir(c.OutputDir)
}

// Filter parses ContentFilter.
func (c *Config) Filter() (model.ContentFilter, error) {
	return model.ParseContentFilter(c.ContentFilter)
}

// DatabaseDir returns DBDir, or the XDG data directory when it is empty.
func (c *Config) DatabaseDir() string {
	if c.DBDir != "" {
		return c.DBDir
	}
	return XDGDataDir()
}

// XDGDataDir returns the XDG data directory for the harvester.
// On Linux: ~/.local/share/harvester
// On macOS: ~/Library/Application Support/harvester
// On Windows: %LOCALAPPDATA%\harvester
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the harvester.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ValidateStorage checks the options that do not depend on a seed. It is
// used by commands that read results without crawling.
func (c *Config) ValidateStorage() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return ErrNoRedisURL
		}
	default:
		return ErrUnknownBackend
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// Validate checks if the configuration is valid for a crawl and returns
// the first problem found.
func (c *Config) Validate() error {
	if len(c.SeedURLs) == 0 {
		return ErrNoSeed
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrNoOutputDir
	}
	if _, err := c.Namespace(); err != nil {
		return ErrInvalidOutputDir
	}
	if _, err := c.Filter(); err != nil {
		return ErrInvalidContentFilter
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.MaxQueueSize < 0 {
		return ErrInvalidMaxQueueSize
	}
	if c.Scope != "" && !slices.Contains(scopeRules, strings.ToLower(c.Scope)) {
		return ErrInvalidScope
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	return c.ValidateStorage()
}

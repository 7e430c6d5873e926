package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed URL specified")

	// ErrNoOutputDir is returned when no output directory is given.
	ErrNoOutputDir = errors.New("no output directory specified: use --output")

	// ErrInvalidOutputDir is returned when no namespace can be derived from the output directory.
	ErrInvalidOutputDir = errors.New("invalid output directory: cannot be used as a namespace")

	// ErrInvalidContentFilter is returned for filters outside content|images|files|audio|videos|all.
	ErrInvalidContentFilter = errors.New("invalid content type: must be content, images, files, audio, videos or all")

	// ErrInvalidMaxDepth is returned when the depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidConcurrency is returned when the worker count is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRetries is returned when the retry count is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidMaxQueueSize is returned when the frontier cap is negative.
	ErrInvalidMaxQueueSize = errors.New("invalid max queue size: must be non-negative")

	// ErrInvalidScope is returned for unknown scope rules.
	ErrInvalidScope = errors.New("invalid scope: must be same-origin, same-host, same-site or any")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownBackend is returned for storage backends other than sqlite, redis and memory.
	ErrUnknownBackend = errors.New("unknown storage backend: must be sqlite, redis or memory")

	// ErrNoRedisURL is returned when the redis backend is selected without --redis-url.
	ErrNoRedisURL = errors.New("redis backend requires --redis-url")

	// ErrConflictingProxy is returned when both --tor and --proxy are specified.
	ErrConflictingProxy = errors.New("conflicting proxies: --tor and --proxy cannot be used together")
)

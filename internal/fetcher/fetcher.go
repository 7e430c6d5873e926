package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// Default fetch settings.
const (
	// DefaultTimeout is the per-attempt request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the backoff delay before the first retry.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxDelay caps the exponential backoff and Retry-After waits.
	DefaultMaxDelay = 10 * time.Second

	// DefaultMaxBodySize is the number of body bytes kept per response.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (compatible; harvester/1.0)"
)

// maxErrorBodyDrain bounds how much of an error response is read so the
// connection can be reused.
const maxErrorBodyDrain = 4 * 1024

// Result is a successfully fetched resource.
type Result struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the canonical URL after redirects.
	FinalURL string

	// ResponseURL is the URL that produced the response exactly as the
	// server saw it. Relative references in the body resolve against it.
	ResponseURL string

	// StatusCode is the final HTTP status.
	StatusCode int

	// MimeType is the declared media type, lowercased and without
	// parameters. Empty when the server did not declare one.
	MimeType string

	// Charset is the declared charset parameter, if any.
	Charset string

	// Header holds the final response headers.
	Header http.Header

	// Body holds at most the configured number of body bytes.
	Body []byte

	// Truncated is set when the body was larger than the limit.
	Truncated bool

	// Attempts is the number of requests made.
	Attempts int

	// FetchedAt is when the body was received.
	FetchedAt time.Time
}

// Redirected reports whether the final URL differs from the requested one.
func (r *Result) Redirected() bool {
	return r.FinalURL != "" && r.FinalURL != r.URL
}

// SniffedType returns the media type detected from the body.
func (r *Result) SniffedType() string {
	mime, _ := normalizeContentType(http.DetectContentType(r.Body))
	return mime
}

// Fetcher performs GET requests with per-attempt timeouts and retries.
// It holds no mutable state besides the optional host limiter, so a single
// Fetcher is shared by every worker of a session.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxBodySize int64
	limiter     *HostLimiter
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithBackoff sets the base and maximum retry delay.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(f *Fetcher) {
		if base >= 0 {
			f.baseDelay = base
		}
		if maxDelay >= 0 {
			f.maxDelay = maxDelay
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the number of body bytes kept per response.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithLimiter applies a per-host rate limit before every attempt.
func WithLimiter(l *HostLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher on top of client. Use NewHTTPClient to build a
// client with the redirect cap applied.
func New(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// UserAgent returns the configured User-Agent.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch downloads rawURL. Transient failures are retried with exponential
// backoff up to the retry budget. Cancelling ctx stops retries and aborts
// the in-flight request.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	for attempt := 0; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, rawURL); err != nil {
				return nil, &FetchError{URL: rawURL, Attempts: attempt, Err: err}
			}
		}

		res, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			res.Attempts = attempt + 1
			return res, nil
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{URL: rawURL, Err: err}
		}
		fe.Attempts = attempt + 1

		if ctx.Err() != nil || !fe.Transient || attempt >= f.maxRetries {
			return nil, fe
		}

		delay := f.backoff(attempt)
		if fe.RetryAfter > delay {
			delay = min(fe.RetryAfter, f.maxDelay)
		}
		f.logger.DebugContext(ctx, "retrying fetch",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", fe.Error()))

		if err := sleep(ctx, delay); err != nil {
			fe.Err = fmt.Errorf("%w (last error: %v)", err, fe.Err)
			fe.Transient = false
			return nil, fe
		}
	}
}

// backoff returns base * 2^attempt capped at the maximum delay.
func (f *Fetcher) backoff(attempt int) time.Duration {
	if f.baseDelay <= 0 {
		return 0
	}
	d := f.baseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= f.maxDelay {
			return f.maxDelay
		}
	}
	return min(d, f.maxDelay)
}

// fetchOnce performs a single attempt bounded by the per-attempt timeout.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyDrain)) //nolint:errcheck // draining for reuse
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Transient:  isTransientStatus(resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, classifyError(ctx, rawURL, err)
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}

	finalURL, responseURL := rawURL, rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		responseURL = resp.Request.URL.String()
		if canonical, err := model.CanonicalString(responseURL); err == nil {
			finalURL = canonical
		}
	}

	mime, charset := normalizeContentType(resp.Header.Get("Content-Type"))

	return &Result{
		URL:         rawURL,
		FinalURL:    finalURL,
		ResponseURL: responseURL,
		StatusCode:  resp.StatusCode,
		MimeType:    mime,
		Charset:     charset,
		Header:      resp.Header,
		Body:        body,
		Truncated:   truncated,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// classifyError maps a transport error to a FetchError. Cancellation of the
// parent context is never transient.
func classifyError(parent context.Context, rawURL string, err error) *FetchError {
	fe := &FetchError{URL: rawURL, Err: err}

	if parent.Err() != nil {
		fe.Err = parent.Err()
		return fe
	}
	if errors.Is(err, ErrTooManyRedirects) {
		return fe
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		fe.Transient = dnsErr.IsTimeout || (dnsErr.IsTemporary && !dnsErr.IsNotFound)
		return fe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		fe.Transient = true
		return fe
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		fe.Transient = true
		return fe
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		fe.Transient = true
	}
	return fe
}

// isTransientStatus reports whether a status code is worth retrying.
// 429 is a 4xx but signals rate limiting, so it is retried too.
func isTransientStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// normalizeContentType strips parameters from a Content-Type header and
// returns the lowercased media type plus the charset parameter.
func normalizeContentType(ct string) (mime, charset string) {
	parts := strings.Split(ct, ";")
	mime = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "charset") {
			charset = strings.ToLower(strings.Trim(strings.TrimSpace(value), `"`))
		}
	}
	return mime, charset
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultMaxRedirects is the number of redirects followed before a fetch fails.
const DefaultMaxRedirects = 5

// ContextDialer is satisfied by net.Dialer and by SOCKS5 dialers from
// golang.org/x/net/proxy.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ClientOptions configures the HTTP client of a crawl session.
type ClientOptions struct {
	// MaxRedirects caps redirects per request. Zero means DefaultMaxRedirects.
	MaxRedirects int

	// MaxConnsPerHost bounds idle and active connections per host.
	// It should be at least the worker count.
	MaxConnsPerHost int

	// Dialer overrides the network dialer, e.g. to route through SOCKS5.
	Dialer ContextDialer

	// InsecureSkipVerify disables TLS verification. Onion services use
	// self-signed certificates, so it is enabled for Tor sessions.
	InsecureSkipVerify bool

	// Cookie is sent with every request when not empty.
	Cookie string

	// Headers are set on every request.
	Headers map[string]string
}

// NewHTTPClient creates the client used for one crawl session.
// Callers own its connection pool and should call CloseIdleConnections
// when the session ends.
func NewHTTPClient(opts ClientOptions) *http.Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	perHost := opts.MaxConnsPerHost
	if perHost < 2 {
		perHost = 2
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          perHost * 4,
		MaxIdleConnsPerHost:   perHost,
		MaxConnsPerHost:       perHost,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if opts.Dialer != nil {
		// a custom dialer already decides where traffic goes
		transport.Proxy = nil
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // onion services use self-signed certs
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	var rt http.RoundTripper = transport
	if opts.Cookie != "" || len(opts.Headers) > 0 {
		rt = &headerInjectingTransport{base: transport, cookie: opts.Cookie, headers: opts.Headers}
	}

	return &http.Client{
		Transport: rt,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}
}

// headerInjectingTransport adds the configured cookie and headers to every
// request, including the ones issued while following redirects.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}

// CloseIdleConnections is implemented by *http.Transport and *http.Client.
type idleCloser interface {
	CloseIdleConnections()
}

// CloseIdleConnections on the wrapper forwards to the wrapped transport so
// http.Client.CloseIdleConnections releases the session pool.
func (t *headerInjectingTransport) CloseIdleConnections() {
	if c, ok := t.base.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

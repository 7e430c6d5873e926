package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsPolicy answers whether a URL may be fetched according to the
// robots.txt of its origin. Each origin's file is fetched once per session.
type RobotsPolicy struct {
	fetcher *Fetcher
	agent   string
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.Group
	group singleflight.Group
}

// NewRobotsPolicy creates a policy that downloads robots.txt through f and
// evaluates rules for the fetcher's user agent.
func NewRobotsPolicy(f *Fetcher, logger *slog.Logger) *RobotsPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsPolicy{
		fetcher: f,
		agent:   f.UserAgent(),
		logger:  logger,
		cache:   make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether u may be crawled. Missing or unreachable
// robots.txt files allow everything.
func (p *RobotsPolicy) Allowed(ctx context.Context, u *url.URL) bool {
	group := p.groupFor(ctx, u.Scheme+"://"+u.Host)
	if group == nil {
		return true
	}
	return group.Test(u.RequestURI())
}

func (p *RobotsPolicy) groupFor(ctx context.Context, origin string) *robotstxt.Group {
	p.mu.RLock()
	g, ok := p.cache[origin]
	p.mu.RUnlock()
	if ok {
		return g
	}

	v, _, _ := p.group.Do(origin, func() (any, error) {
		p.mu.RLock()
		cached, ok := p.cache[origin]
		p.mu.RUnlock()
		if ok {
			return cached, nil
		}

		g := p.load(ctx, origin)
		if ctx.Err() != nil {
			// do not remember a result produced by a cancelled request
			return g, nil
		}
		p.mu.Lock()
		p.cache[origin] = g
		p.mu.Unlock()
		return g, nil
	})
	g, _ = v.(*robotstxt.Group) //nolint:errcheck // nil group means allow all
	return g
}

func (p *RobotsPolicy) load(ctx context.Context, origin string) *robotstxt.Group {
	res, err := p.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.StatusCode >= http.StatusBadRequest && fe.StatusCode < http.StatusInternalServerError {
			return nil
		}
		p.logger.DebugContext(ctx, "robots.txt unavailable, allowing all",
			slog.String("origin", origin), slog.String("error", err.Error()))
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		p.logger.DebugContext(ctx, "robots.txt unparsable, allowing all",
			slog.String("origin", origin), slog.String("error", err.Error()))
		return nil
	}
	return data.FindGroup(p.agent)
}

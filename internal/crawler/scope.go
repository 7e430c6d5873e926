package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// ScopeRule decides which hosts a crawl may visit.
type ScopeRule string

const (
	// ScopeSameOrigin allows only the seed's scheme, host and port.
	ScopeSameOrigin ScopeRule = "same-origin"

	// ScopeSameHost allows the seed host on any scheme or port.
	ScopeSameHost ScopeRule = "same-host"

	// ScopeSameSite allows every host sharing the seed's registrable
	// domain (eTLD+1), e.g. www.example.com and cdn.example.com.
	ScopeSameSite ScopeRule = "same-site"

	// ScopeAny allows every host. Depth and page limits still apply.
	ScopeAny ScopeRule = "any"
)

// ParseScopeRule validates a scope rule name. Empty means same-origin.
func ParseScopeRule(s string) (ScopeRule, error) {
	switch r := ScopeRule(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return ScopeSameOrigin, nil
	case ScopeSameOrigin, ScopeSameHost, ScopeSameSite, ScopeAny:
		return r, nil
	default:
		return "", fmt.Errorf("unknown scope rule %q (want same-origin, same-host, same-site or any)", s)
	}
}

// Scope is the traversal boundary of one session: a host rule plus extra
// allowed hosts and path glob patterns.
type Scope struct {
	rule ScopeRule
	seed *url.URL
	site string

	mu      sync.RWMutex
	origins map[string]bool
	hosts   map[string]bool

	ignorePatterns []string
	followPatterns []string
}

// ScopeConfig lists the optional parts of a Scope.
type ScopeConfig struct {
	// AllowedHosts are in scope regardless of the rule, e.g. a CDN host.
	AllowedHosts []string

	// IgnorePatterns are URL path globs to skip (e.g. "/admin/*", "*.pdf").
	IgnorePatterns []string

	// FollowPatterns, when not empty, restrict the crawl to matching paths.
	FollowPatterns []string
}

// NewScope creates the boundary for a crawl starting at seed.
func NewScope(seed *url.URL, rule ScopeRule, cfg ScopeConfig) *Scope {
	if rule == "" {
		rule = ScopeSameOrigin
	}
	s := &Scope{
		rule:           rule,
		seed:           seed,
		site:           registrableDomain(seed.Hostname()),
		origins:        map[string]bool{originKey(seed): true},
		hosts:          make(map[string]bool, len(cfg.AllowedHosts)),
		ignorePatterns: cfg.IgnorePatterns,
		followPatterns: cfg.FollowPatterns,
	}
	for _, h := range cfg.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s.hosts[h] = true
		}
	}
	return s
}

// Rule returns the host rule.
func (s *Scope) Rule() ScopeRule {
	return s.rule
}

// AddOrigin puts the origin of u in scope. It is used when the seed
// redirects, e.g. from http://example.com to https://www.example.com.
func (s *Scope) AddOrigin(u *url.URL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origins[originKey(u)] = true
}

// Allows reports whether u may be traversed: its host must satisfy the
// rule and its path must pass the ignore and follow patterns.
func (s *Scope) Allows(u *url.URL) bool {
	return s.hostAllowed(u) && s.pathAllowed(u)
}

func (s *Scope) hostAllowed(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())

	s.mu.RLock()
	extra := s.hosts[host] || s.origins[originKey(u)]
	s.mu.RUnlock()
	if extra {
		return true
	}

	switch s.rule {
	case ScopeAny:
		return true
	case ScopeSameHost:
		return strings.EqualFold(host, s.seed.Hostname())
	case ScopeSameSite:
		return s.site != "" && registrableDomain(host) == s.site
	default:
		return false
	}
}

// pathAllowed applies the ignore patterns first, then the follow patterns.
func (s *Scope) pathAllowed(u *url.URL) bool {
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}
	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// originKey is scheme://host:port with the default port made explicit.
func originKey(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Hostname()) + ":" + port
}

// registrableDomain returns the eTLD+1 of host, or the host itself for IPs
// and names the public suffix list does not know.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?/") {
		return strings.HasSuffix(strings.ToLower(p), "."+strings.ToLower(ext))
	}
	if matched, err := filepath.Match(pattern, p); err == nil && matched {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(p))
		return err == nil && matched
	}
	return false
}

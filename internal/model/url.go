package model

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// URLRecord is a discovered URL together with the canonical form used as
// the deduplication key.
type URLRecord struct {
	// RawURL is the URL exactly as it appeared in the referencing document.
	RawURL string `json:"raw_url"`

	// CanonicalURL is the normalized absolute URL. Two records with the same
	// CanonicalURL refer to the same resource.
	CanonicalURL string `json:"canonical_url"`

	// Origin is scheme://host[:port] of the canonical URL.
	Origin string `json:"origin"`

	// Depth is the number of link hops from the seed.
	Depth int `json:"depth"`
}

// NewURLRecord resolves raw against base (which may be nil for absolute
// URLs) and returns the canonical record at the given depth.
func NewURLRecord(raw string, base *url.URL, depth int) (URLRecord, error) {
	u, err := Canonicalize(raw, base)
	if err != nil {
		return URLRecord{}, err
	}
	return URLRecord{
		RawURL:       raw,
		CanonicalURL: u.String(),
		Origin:       Origin(u),
		Depth:        depth,
	}, nil
}

// skippedPrefixes are references that never point at fetchable resources.
var skippedPrefixes = []string{"javascript:", "mailto:", "tel:", "data:", "blob:", "about:"}

// Canonicalize turns a possibly relative reference into the canonical URL.
//
// The rules are:
//   - relative references are resolved against base
//   - only http and https are accepted
//   - scheme and host are lowercased, default ports are removed
//   - the fragment is dropped
//   - an empty path becomes "/" and a trailing slash is removed from any other path
//   - query parameters are sorted by key
func Canonicalize(raw string, base *url.URL) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidURL)
	}
	lower := strings.ToLower(raw)
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, prefix)
		}
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}

	u.Host = canonicalHost(u)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	switch {
	case u.Path == "":
		u.Path = "/"
		u.RawPath = ""
	case u.Path != "/" && strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawPath = ""
	}

	if u.RawQuery != "" {
		u.RawQuery = canonicalQuery(u.RawQuery)
	}
	u.ForceQuery = false

	return u, nil
}

// canonicalQuery sorts the query parameters. A query that url.ParseQuery
// rejects, for example one using ';' or a bad escape, would lose pairs when
// re-encoded, so its raw '&'-separated pairs are sorted as they are.
func canonicalQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err == nil {
		return values.Encode()
	}
	pairs := strings.Split(raw, "&")
	pairs = slices.DeleteFunc(pairs, func(p string) bool { return p == "" })
	slices.Sort(pairs)
	return strings.Join(pairs, "&")
}

// canonicalHost lowercases the host and strips ports that match the scheme default.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port == "" {
		return host
	}
	return host + ":" + port
}

// CanonicalString canonicalizes an absolute URL and returns its string form.
func CanonicalString(raw string) (string, error) {
	u, err := Canonicalize(raw, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Origin returns scheme://host[:port] for u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// maxNamespaceLength bounds the namespace so it stays usable as a key prefix and file name.
const maxNamespaceLength = 200

// NamespaceFromDir derives the storage namespace from an output directory
// by replacing path separators with underscores, e.g. "data/site" becomes
// "data_site".
func NamespaceFromDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", ErrEmptyNamespace
	}
	cleaned := filepath.Clean(dir)
	ns := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(cleaned)
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	return ns, nil
}

// ValidateNamespace checks that ns can be used as a storage partition.
func ValidateNamespace(ns string) error {
	if strings.TrimSpace(ns) == "" {
		return ErrEmptyNamespace
	}
	if ns == "." || ns == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	if len(ns) > maxNamespaceLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidNamespace, maxNamespaceLength)
	}
	for _, r := range ns {
		if unicode.IsControl(r) || r == '/' || r == '\\' || r == ':' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidNamespace, ns, r)
		}
	}
	return nil
}

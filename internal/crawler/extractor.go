package crawler

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/harvester/internal/model"
)

// Resource is an embedded or downloadable URL together with the kind
// implied by the tag that referenced it.
type Resource struct {
	URL  string
	Hint model.ContentKind
}

// Discovery is one URL in the order the document references it. Links
// have no hint.
type Discovery struct {
	URL  string
	Hint model.ContentKind
	Link bool
}

// Extraction is the result shape shared by every extractor. URLs are
// absolute and canonical.
type Extraction struct {
	// Links are documents to traverse.
	Links []string

	// Resources are embedded media and downloads.
	Resources []Resource

	// Discovered lists Links and Resources together in document order.
	Discovered []Discovery

	// Canonical is the URL the document declares for itself, if any.
	Canonical string

	// Warnings holds *ParseError values for fragments that were skipped.
	Warnings []error
}

func (x *Extraction) addLink(u string) {
	x.Links = append(x.Links, u)
	x.Discovered = append(x.Discovered, Discovery{URL: u, Link: true})
}

func (x *Extraction) addResource(u string, hint model.ContentKind) {
	x.Resources = append(x.Resources, Resource{URL: u, Hint: hint})
	x.Discovered = append(x.Discovered, Discovery{URL: u, Hint: hint})
}

func (x *Extraction) warn(ref string, err error) {
	x.Warnings = append(x.Warnings, &ParseError{Ref: ref, Err: err})
}

// Extractor pulls links and resources out of one kind of document.
// Implementations never fail: problems are reported as warnings and
// whatever was recovered is returned.
type Extractor interface {
	Extract(body []byte, base *url.URL) *Extraction
}

// DocumentType is the syntactic format of a fetched body.
type DocumentType int

const (
	// DocOther is anything that has no links to follow.
	DocOther DocumentType = iota
	// DocHTML is an HTML or XHTML document.
	DocHTML
	// DocFeed is an RSS, Atom or JSON feed.
	DocFeed
	// DocSitemap is a sitemap urlset or sitemap index.
	DocSitemap
)

// String returns the document type name.
func (d DocumentType) String() string {
	switch d {
	case DocHTML:
		return "html"
	case DocFeed:
		return "feed"
	case DocSitemap:
		return "sitemap"
	default:
		return "other"
	}
}

// IsTraversal reports whether the document only serves discovery. Feeds and
// sitemaps are followed but not stored as content.
func (d DocumentType) IsTraversal() bool {
	return d == DocFeed || d == DocSitemap
}

var feedMIME = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/rdf+xml":   true,
	"application/feed+json": true,
}

var xmlMIME = map[string]bool{
	"application/xml": true,
	"text/xml":        true,
}

// sniffLen is how much of the body is inspected to detect XML documents.
const sniffLen = 1024

// DetectDocument decides the document type from the declared media type,
// sniffing the body when the declaration is missing or generic.
func DetectDocument(mimeType string, body []byte) DocumentType {
	switch {
	case mimeType == "text/html" || mimeType == "application/xhtml+xml":
		return DocHTML
	case feedMIME[mimeType]:
		return DocFeed
	case xmlMIME[mimeType], mimeType == "", ambiguousMIME[mimeType], mimeType == "text/plain":
		return sniffDocument(body)
	default:
		return DocOther
	}
}

func sniffDocument(body []byte) DocumentType {
	head := body
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	lower := strings.ToLower(string(head))

	switch {
	case strings.Contains(lower, "<urlset"), strings.Contains(lower, "<sitemapindex"):
		return DocSitemap
	case strings.Contains(lower, "<rss"), strings.Contains(lower, "<feed"), strings.Contains(lower, "<rdf:rdf"):
		return DocFeed
	}
	if mime, _, _ := strings.Cut(http.DetectContentType(head), ";"); mime == "text/html" {
		return DocHTML
	}
	return DocOther
}

// ExtractorSet dispatches a document to the extractor for its type and
// applies the session scope to the result.
type ExtractorSet struct {
	extractors map[DocumentType]Extractor
	scope      *Scope
}

// NewExtractorSet creates the dispatcher used by a session.
func NewExtractorSet(scope *Scope, downloadExts []string) *ExtractorSet {
	return &ExtractorSet{
		extractors: map[DocumentType]Extractor{
			DocHTML:    NewHTMLExtractor(downloadExts),
			DocFeed:    NewFeedExtractor(),
			DocSitemap: NewSitemapExtractor(),
		},
		scope: scope,
	}
}

// Extract runs the extractor for doc and returns only in-scope, unique URLs.
// A URL referenced both as a link and as a resource is kept as a resource.
func (s *ExtractorSet) Extract(doc DocumentType, body []byte, base *url.URL) *Extraction {
	ex, ok := s.extractors[doc]
	if !ok {
		return &Extraction{}
	}
	raw := ex.Extract(body, base)

	out := &Extraction{Canonical: raw.Canonical, Warnings: raw.Warnings}
	taken := make(map[string]bool, len(raw.Links)+len(raw.Resources))

	for _, r := range raw.Resources {
		if taken[r.URL] || !s.inScope(r.URL) {
			continue
		}
		taken[r.URL] = true
		out.Resources = append(out.Resources, r)
	}
	resources := make(map[string]bool, len(out.Resources))
	for _, r := range out.Resources {
		resources[r.URL] = true
	}
	links := make(map[string]bool, len(raw.Links))
	for _, l := range raw.Links {
		if taken[l] || !s.inScope(l) {
			continue
		}
		taken[l] = true
		links[l] = true
		out.Links = append(out.Links, l)
	}

	emitted := make(map[string]bool, len(taken))
	for _, d := range raw.Discovered {
		if emitted[d.URL] {
			continue
		}
		if (d.Link && links[d.URL]) || (!d.Link && resources[d.URL]) {
			emitted[d.URL] = true
			out.Discovered = append(out.Discovered, d)
		}
	}
	return out
}

func (s *ExtractorSet) inScope(raw string) bool {
	if s.scope == nil {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return s.scope.Allows(u)
}

package crawler

import (
	"bytes"
	"net/url"

	sitemap "github.com/oxffaa/gopher-parse-sitemap"

	"github.com/nao1215/harvester/internal/model"
)

// SitemapExtractor reads sitemap urlsets and sitemap indexes. Both page
// locations and child sitemaps are returned as links.
type SitemapExtractor struct{}

// NewSitemapExtractor creates a sitemap extractor.
func NewSitemapExtractor() *SitemapExtractor {
	return &SitemapExtractor{}
}

// Extract implements Extractor.
func (e *SitemapExtractor) Extract(body []byte, base *url.URL) *Extraction {
	out := &Extraction{}

	add := func(loc string) error {
		u, err := model.Canonicalize(loc, base)
		if err != nil {
			out.warn(loc, err)
			return nil
		}
		out.addLink(u.String())
		return nil
	}

	if bytes.Contains(bytes.ToLower(head(body)), []byte("<sitemapindex")) {
		if err := sitemap.ParseIndex(bytes.NewReader(body), func(entry sitemap.IndexEntry) error {
			return add(entry.GetLocation())
		}); err != nil {
			out.warn(base.String(), err)
		}
		return out
	}

	if err := sitemap.Parse(bytes.NewReader(body), func(entry sitemap.Entry) error {
		return add(entry.GetLocation())
	}); err != nil {
		out.warn(base.String(), err)
	}
	return out
}

func head(body []byte) []byte {
	if len(body) > sniffLen {
		return body[:sniffLen]
	}
	return body
}

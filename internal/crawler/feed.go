package crawler

import (
	"bytes"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/nao1215/harvester/internal/model"
)

// FeedExtractor reads RSS, Atom and JSON feeds. Item links become links and
// enclosures (podcast episodes, attached videos, images) become resources.
type FeedExtractor struct{}

// NewFeedExtractor creates a feed extractor.
func NewFeedExtractor() *FeedExtractor {
	return &FeedExtractor{}
}

// Extract implements Extractor.
func (e *FeedExtractor) Extract(body []byte, base *url.URL) *Extraction {
	out := &Extraction{}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		out.warn(base.String(), err)
		return out
	}

	resolve := func(ref string) (string, bool) {
		if ref == "" {
			return "", false
		}
		u, err := model.Canonicalize(ref, base)
		if err != nil {
			out.warn(ref, err)
			return "", false
		}
		return u.String(), true
	}

	if u, ok := resolve(feed.Link); ok {
		out.addLink(u)
	}
	if feed.Image != nil {
		if u, ok := resolve(feed.Image.URL); ok {
			out.addResource(u, model.KindImage)
		}
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		links := item.Links
		if len(links) == 0 && item.Link != "" {
			links = []string{item.Link}
		}
		for _, l := range links {
			if u, ok := resolve(l); ok {
				out.addLink(u)
			}
		}
		if item.Image != nil {
			if u, ok := resolve(item.Image.URL); ok {
				out.addResource(u, model.KindImage)
			}
		}
		for _, enc := range item.Enclosures {
			if enc == nil {
				continue
			}
			if u, ok := resolve(enc.URL); ok {
				hint, _ := KindFromMIME(enc.Type)
				out.addResource(u, hint)
			}
		}
	}
	return out
}

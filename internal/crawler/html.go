package crawler

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/harvester/internal/model"
)

// HTMLExtractor finds links and resources in HTML documents.
//
// golang.org/x/net/html builds a tree from any input, however broken, the
// same way browsers do, so malformed markup only ever costs individual
// references, never the whole page.
type HTMLExtractor struct {
	downloadExts map[string]bool
}

// NewHTMLExtractor creates an extractor that treats anchors whose path ends
// in one of downloadExts as file resources. Nil selects
// DefaultDownloadExtensions.
func NewHTMLExtractor(downloadExts []string) *HTMLExtractor {
	if downloadExts == nil {
		downloadExts = DefaultDownloadExtensions
	}
	exts := make(map[string]bool, len(downloadExts))
	for _, e := range downloadExts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &HTMLExtractor{downloadExts: exts}
}

// htmlWalk holds the state of one extraction.
type htmlWalk struct {
	ex      *HTMLExtractor
	base    *url.URL
	baseSet bool
	out     *Extraction
}

// Extract implements Extractor.
func (e *HTMLExtractor) Extract(body []byte, base *url.URL) *Extraction {
	out := &Extraction{}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		out.warn(base.String(), err)
		return out
	}

	w := &htmlWalk{ex: e, base: base, out: out}
	w.walk(doc)
	return out
}

func (w *htmlWalk) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		w.element(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// element handles one element node.
func (w *htmlWalk) element(n *html.Node) {
	switch n.Data {
	case "base":
		// only the first <base href> counts
		if href := getAttr(n, "href"); href != "" && !w.baseSet {
			if ref, err := url.Parse(href); err == nil {
				w.base = w.base.ResolveReference(ref)
				w.baseSet = true
			}
		}

	case "a", "area":
		href := getAttr(n, "href")
		if href == "" {
			return
		}
		u, ok := w.resolve(href)
		if !ok {
			return
		}
		if hint, isResource := w.ex.anchorHint(u, hasAttr(n, "download")); isResource {
			w.out.addResource(u, hint)
			return
		}
		w.out.addLink(u)

	case "iframe", "frame":
		w.link(getAttr(n, "src"))

	case "img":
		w.resource(getAttr(n, "src"), model.KindImage)
		w.resource(getAttr(n, "data-src"), model.KindImage)
		w.resource(firstSrcset(getAttr(n, "srcset")), model.KindImage)

	case "audio":
		w.resource(getAttr(n, "src"), model.KindAudio)

	case "video":
		w.resource(getAttr(n, "src"), model.KindVideo)
		w.resource(getAttr(n, "poster"), model.KindImage)

	case "source":
		w.source(n)

	case "embed":
		w.resource(getAttr(n, "src"), model.KindUnknown)

	case "object":
		w.resource(getAttr(n, "data"), model.KindUnknown)

	case "link":
		w.linkElement(n)

	case "meta":
		if strings.EqualFold(getAttr(n, "http-equiv"), "refresh") {
			w.link(refreshTarget(getAttr(n, "content")))
		}
	}
}

// source handles <source> by the media element it belongs to.
func (w *htmlWalk) source(n *html.Node) {
	parent := ""
	if n.Parent != nil {
		parent = n.Parent.Data
	}
	switch parent {
	case "audio":
		w.resource(getAttr(n, "src"), model.KindAudio)
	case "video":
		w.resource(getAttr(n, "src"), model.KindVideo)
	case "picture":
		w.resource(firstSrcset(getAttr(n, "srcset")), model.KindImage)
	default:
		w.resource(getAttr(n, "src"), model.KindUnknown)
	}
}

// linkElement handles <link>: canonical, icons and alternate feeds.
func (w *htmlWalk) linkElement(n *html.Node) {
	href := getAttr(n, "href")
	if href == "" {
		return
	}
	rels := strings.Fields(strings.ToLower(getAttr(n, "rel")))
	for _, rel := range rels {
		switch rel {
		case "canonical":
			if u, ok := w.resolve(href); ok && w.out.Canonical == "" {
				w.out.Canonical = u
			}
		case "icon", "apple-touch-icon":
			w.resource(href, model.KindImage)
		case "alternate":
			if t := strings.ToLower(getAttr(n, "type")); feedMIME[t] {
				w.link(href)
			}
		}
	}
}

func (w *htmlWalk) link(ref string) {
	if ref == "" {
		return
	}
	if u, ok := w.resolve(ref); ok {
		w.out.addLink(u)
	}
}

func (w *htmlWalk) resource(ref string, hint model.ContentKind) {
	if ref == "" {
		return
	}
	if u, ok := w.resolve(ref); ok {
		w.out.addResource(u, hint)
	}
}

// resolve canonicalizes ref against the current base. References that
// cannot be fetched at all (mailto:, javascript:...) are skipped silently;
// broken ones are reported as warnings.
func (w *htmlWalk) resolve(ref string) (string, bool) {
	u, err := model.Canonicalize(ref, w.base)
	if err != nil {
		if !errors.Is(err, model.ErrUnsupportedScheme) && !strings.HasPrefix(strings.TrimSpace(ref), "#") {
			w.out.warn(ref, err)
		}
		return "", false
	}
	return u.String(), true
}

// anchorHint decides whether an anchor points at a downloadable resource
// rather than a page, and which kind it implies.
func (e *HTMLExtractor) anchorHint(rawURL string, download bool) (model.ContentKind, bool) {
	ext := urlExtension(rawURL)
	if kind, ok := extensionKinds[ext]; ok {
		switch kind {
		case model.KindImage, model.KindAudio, model.KindVideo:
			return kind, true
		}
	}
	if e.downloadExts[ext] || download {
		return model.KindFile, true
	}
	return model.KindUnknown, false
}

// firstSrcset returns the first candidate URL of a srcset attribute.
func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// refreshTarget extracts the URL from a meta refresh value like "0; url=/next".
func refreshTarget(content string) string {
	_, after, ok := strings.Cut(content, ";")
	if !ok {
		return ""
	}
	after = strings.TrimSpace(after)
	if len(after) < 4 || !strings.EqualFold(after[:4], "url=") {
		return ""
	}
	return strings.Trim(strings.TrimSpace(after[4:]), `'"`)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

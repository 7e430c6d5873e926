package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

// maxTextSize bounds the stored text of one page.
const maxTextSize = 512 * 1024

// PageText is the readable content of an HTML page.
type PageText struct {
	Title       string
	Text        string
	Description string
	Language    string
	Byline      string
	SiteName    string
}

// ExtractText returns the main text of an HTML document. Readability is
// tried first; when it finds no article the visible body text is used.
// Titles and descriptions come from the document head.
func ExtractText(body []byte, pageURL *url.URL) PageText {
	var pt PageText

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		pt.Title = collapseSpace(doc.Find("title").First().Text())
		pt.Description = firstAttr(doc,
			`meta[name="description"]`,
			`meta[property="og:description"]`,
		)
		if pt.Title == "" {
			pt.Title = firstAttr(doc, `meta[property="og:title"]`)
		}
		pt.Language, _ = doc.Find("html").First().Attr("lang")
		pt.SiteName = firstAttr(doc, `meta[property="og:site_name"]`)
	}

	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		pt.Text = collapseSpace(article.TextContent)
		if pt.Title == "" {
			pt.Title = collapseSpace(article.Title)
		}
		if pt.Description == "" {
			pt.Description = collapseSpace(article.Excerpt)
		}
		pt.Byline = collapseSpace(article.Byline)
		if pt.SiteName == "" {
			pt.SiteName = article.SiteName
		}
	}

	if pt.Text == "" && doc != nil {
		sel := doc.Find("body")
		sel.Find("script, style, noscript, template").Remove()
		pt.Text = collapseSpace(sel.Text())
	}

	if len(pt.Text) > maxTextSize {
		pt.Text = truncateUTF8(pt.Text, maxTextSize)
	}
	return pt
}

// firstAttr returns the content attribute of the first matching selector.
func firstAttr(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = collapseSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// collapseSpace trims s and folds runs of whitespace into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// DecodeHTML converts an HTML body to UTF-8 using the declared charset, a
// <meta charset> or content sniffing, in that order.
func DecodeHTML(body []byte, mimeType, declaredCharset string) []byte {
	contentType := mimeType
	if declaredCharset != "" {
		contentType += "; charset=" + declaredCharset
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc == nil || name == "utf-8" {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

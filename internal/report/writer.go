package report

import (
	"io"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/harvester/internal/model"
)

// timeLayout is used for timestamps in text and Markdown output.
const timeLayout = "2006-01-02 15:04:05 MST"

// Writer outputs harvester results in one format.
type Writer interface {
	// Write outputs the summary of one crawl session.
	Write(summary *model.CrawlSummary) (int, error)

	// WriteHistory outputs a list of past sessions.
	WriteHistory(sessions []*model.CrawlSummary) (int, error)

	// WriteItems outputs query results keyed by collection name.
	WriteItems(collections map[string][]*model.ContentItem) (int, error)
}

// MultiWriter writes to several Writers in turn, for example the terminal
// and a report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to every writer and stops on the first error.
func (m *MultiWriter) Write(summary *model.CrawlSummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(summary) })
}

// WriteHistory outputs the sessions to every writer.
func (m *MultiWriter) WriteHistory(sessions []*model.CrawlSummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHistory(sessions) })
}

// WriteItems outputs the query results to every writer.
func (m *MultiWriter) WriteItems(collections map[string][]*model.ContentItem) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteItems(collections) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// kindLabel returns the display name of a collection, e.g. "Images".
func kindLabel(k model.ContentKind) string {
	// A Caser keeps state, so one is created per call.
	return cases.Title(language.English).String(k.Collection())
}

// collectionOrder returns the collection names of m in kind order,
// followed by names that are not collections.
func collectionOrder(m map[string][]*model.ContentItem) []string {
	var names []string
	known := make(map[string]bool, len(model.AllKinds))
	for _, k := range model.AllKinds {
		known[k.Collection()] = true
		if _, ok := m[k.Collection()]; ok {
			names = append(names, k.Collection())
		}
	}
	var extra []string
	for name := range m {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(names, extra...)
}

// status describes how a session ended.
func status(s *model.CrawlSummary) string {
	switch {
	case s.Cancelled:
		return "Cancelled (partial results)"
	case len(s.FailedURLs) > 0:
		return "Complete with failures"
	default:
		return "Complete"
	}
}

// itemLabel returns the most useful short description of an item.
func itemLabel(item *model.ContentItem) string {
	switch {
	case item.Title != "":
		return item.Title
	case item.Reference != "" && item.Reference != item.CanonicalURL:
		return item.Reference
	default:
		return item.MimeType
	}
}

// truncateString shortens s to maxLen bytes with an ellipsis, keeping
// UTF-8 sequences intact.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	cut := maxLen - 3
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return strings.TrimRight(s[:cut], " ") + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// SimpleWriter outputs plain text for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty lists collections without items.
	showEmpty bool

	// verbose lists every failed URL instead of the first few.
	verbose bool
}

// maxFailuresShown is the number of failed URLs listed without verbose.
const maxFailuresShown = 10

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty lists collections that have no items.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists every failed URL.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary of one session.
func (w *SimpleWriter) Write(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeItems(&sb, summary)
	w.writeCounters(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, c string) {
	sb.WriteString(strings.Repeat(c, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.CrawlSummary) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                          HARVEST REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Session:    %s\n", s.SessionID)
	fmt.Fprintf(sb, "Seed:       %s\n", s.SeedURL)
	fmt.Fprintf(sb, "Namespace:  %s\n", s.Namespace)
	fmt.Fprintf(sb, "Filter:     %s\n", s.Filter)
	fmt.Fprintf(sb, "Started:    %s\n", s.StartedAt.Local().Format(timeLayout))
	fmt.Fprintf(sb, "Duration:   %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:     %s\n", status(s))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeItems(sb *strings.Builder, s *model.CrawlSummary) {
	section(sb, "ITEMS")
	for _, k := range model.AllKinds {
		n := s.ItemsByKind[k]
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-10s %d\n", kindLabel(k)+":", n)
	}
	fmt.Fprintf(sb, "  %-10s %d\n", "Total:", s.TotalItems())
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounters(sb *strings.Builder, s *model.CrawlSummary) {
	section(sb, "CRAWL")
	fmt.Fprintf(sb, "  Pages visited:     %d\n", s.PagesVisited)
	fmt.Fprintf(sb, "  Failed URLs:       %d\n", len(s.FailedURLs))
	fmt.Fprintf(sb, "  Skipped (robots):  %d\n", s.SkippedByRobots)
	fmt.Fprintf(sb, "  Skipped (scope):   %d\n", s.SkippedByScope)
	fmt.Fprintf(sb, "  Filtered out:      %d\n", s.FilteredOut)
	fmt.Fprintf(sb, "  Frontier dropped:  %d\n", s.FrontierDropped)
	fmt.Fprintf(sb, "  Warnings:          %d\n", s.Warnings)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, s *model.CrawlSummary) {
	if len(s.FailedURLs) == 0 {
		return
	}
	section(sb, fmt.Sprintf("FAILED URLS (%d)", len(s.FailedURLs)))

	shown := s.FailedURLs
	if !w.verbose && len(shown) > maxFailuresShown {
		shown = shown[:maxFailuresShown]
	}
	for _, f := range shown {
		fmt.Fprintf(sb, "  [%s] %s\n", f.Stage, f.URL)
		if f.StatusCode != 0 {
			fmt.Fprintf(sb, "    Status: %d\n", f.StatusCode)
		}
		fmt.Fprintf(sb, "    Reason: %s\n", f.Reason)
	}
	if rest := len(s.FailedURLs) - len(shown); rest > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use --verbose to list all)\n", rest)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by harvester\n")
	rule(sb, "=")
}

// WriteHistory outputs one line per session, most recent first.
func (w *SimpleWriter) WriteHistory(sessions []*model.CrawlSummary) (int, error) {
	var sb strings.Builder
	if len(sessions) == 0 {
		sb.WriteString("No crawl sessions recorded.\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "%-23s  %-36s  %-20s  %6s  %6s  %s\n",
		"STARTED", "SESSION", "NAMESPACE", "ITEMS", "FAILED", "SEED")
	for _, s := range sessions {
		fmt.Fprintf(&sb, "%-23s  %-36s  %-20s  %6d  %6d  %s\n",
			s.StartedAt.Local().Format(timeLayout),
			s.SessionID,
			truncateString(s.Namespace, 20),
			s.TotalItems(),
			len(s.FailedURLs),
			s.SeedURL)
	}
	return io.WriteString(w.output, sb.String())
}

// WriteItems outputs each collection followed by its items.
func (w *SimpleWriter) WriteItems(collections map[string][]*model.ContentItem) (int, error) {
	var sb strings.Builder
	for _, name := range collectionOrder(collections) {
		items := collections[name]
		if len(items) == 0 && !w.showEmpty {
			continue
		}
		section(&sb, fmt.Sprintf("%s (%d)", strings.ToUpper(name), len(items)))
		for _, item := range items {
			fmt.Fprintf(&sb, "  %s  %s\n", item.ID, item.CanonicalURL)
			if label := itemLabel(item); label != "" {
				fmt.Fprintf(&sb, "    %s\n", truncateString(label, 100))
			}
		}
		sb.WriteString("\n")
	}
	return io.WriteString(w.output, sb.String())
}

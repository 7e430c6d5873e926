package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/harvester/internal/model"
)

// MarkdownWriter outputs results as Markdown for sharing and archiving.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary of one session.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeItems(md, summary)
	w.writeCounters(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H1("Harvest Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + s.SessionID + "`"},
			{"Seed", cell(s.SeedURL)},
			{"Namespace", "`" + s.Namespace + "`"},
			{"Filter", s.Filter},
			{"Started", s.StartedAt.Local().Format(timeLayout)},
			{"Duration", s.Duration().Round(time.Millisecond).String()},
			{"Status", status(s)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeItems(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Items")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllKinds)+1)
	for _, k := range model.AllKinds {
		rows = append(rows, []string{kindLabel(k), strconv.Itoa(s.ItemsByKind[k])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(s.TotalItems()) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Collection", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.TotalItems() > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a Mermaid pie chart of the item mix.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.CrawlSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Harvested Items"),
		piechart.WithShowData(true),
	)
	for _, k := range model.AllKinds {
		if n := s.ItemsByKind[k]; n > 0 {
			chart.LabelAndIntValue(kindLabel(k), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.CrawlSummary) {
	switch {
	case s.Cancelled:
		md.Warningf("The session was cancelled. %d item(s) were stored before it stopped.", s.TotalItems())
	case len(s.FailedURLs) > 0:
		md.Importantf("%d URL(s) could not be harvested. See the failure list below.", len(s.FailedURLs))
	case s.TotalItems() == 0:
		md.Note("No items matched the content filter.")
	default:
		md.Tip("Every discovered URL was harvested.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Crawl")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages visited", strconv.Itoa(s.PagesVisited)},
			{"Failed URLs", strconv.Itoa(len(s.FailedURLs))},
			{"Skipped by robots.txt", strconv.Itoa(s.SkippedByRobots)},
			{"Skipped by scope", strconv.Itoa(s.SkippedByScope)},
			{"Filtered out", strconv.Itoa(s.FilteredOut)},
			{"Frontier dropped", strconv.Itoa(s.FrontierDropped)},
			{"Warnings", strconv.Itoa(s.Warnings)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *model.CrawlSummary) {
	if len(s.FailedURLs) == 0 {
		return
	}
	md.H2("Failed URLs")
	md.PlainText("")

	rows := make([][]string, len(s.FailedURLs))
	for i, f := range s.FailedURLs {
		code := "-"
		if f.StatusCode != 0 {
			code = strconv.Itoa(f.StatusCode)
		}
		rows[i] = []string{
			cell(truncateString(f.URL, 80)),
			string(f.Stage),
			code,
			cell(truncateString(f.Reason, 80)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Stage", "Status", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [harvester](https://github.com/nao1215/harvester)*")
}

// WriteHistory outputs a table of past sessions.
func (w *MarkdownWriter) WriteHistory(sessions []*model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl History")
	md.PlainText("")

	if len(sessions) == 0 {
		md.PlainText("No crawl sessions recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		rows[i] = []string{
			s.StartedAt.Local().Format(timeLayout),
			"`" + s.SessionID + "`",
			"`" + s.Namespace + "`",
			strconv.Itoa(s.TotalItems()),
			strconv.Itoa(len(s.FailedURLs)),
			cell(s.SeedURL),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Started", "Session", "Namespace", "Items", "Failed", "Seed"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}

// WriteItems outputs one table per collection.
func (w *MarkdownWriter) WriteItems(collections map[string][]*model.ContentItem) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Harvested Content")
	md.PlainText("")

	for _, name := range collectionOrder(collections) {
		items := collections[name]
		md.H2(fmt.Sprintf("%s (%d)", name, len(items)))
		md.PlainText("")
		if len(items) == 0 {
			md.PlainText("No items.")
			md.PlainText("")
			continue
		}

		rows := make([][]string, len(items))
		for i, item := range items {
			rows[i] = []string{
				"`" + item.ID + "`",
				cell(item.CanonicalURL),
				cell(truncateString(itemLabel(item), 60)),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"ID", "URL", "Details"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	return len(md.String()), md.Build()
}

// cell escapes characters that would break a table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

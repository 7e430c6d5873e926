package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/harvester/internal/model"
)

// JSONWriter outputs results as JSON for other tools.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// version is included in summary reports when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the harvester version in summary reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the JSON form of a session summary. It adds derived
// values so consumers need not recompute them.
type JSONReport struct {
	Version    string              `json:"version,omitempty"`
	Status     string              `json:"status"`
	TotalItems int                 `json:"total_items"`
	DurationMS int64               `json:"duration_ms"`
	Summary    *model.CrawlSummary `json:"summary"`
}

// NewJSONReport wraps summary.
func NewJSONReport(summary *model.CrawlSummary, version string) *JSONReport {
	return &JSONReport{
		Version:    version,
		Status:     status(summary),
		TotalItems: summary.TotalItems(),
		DurationMS: summary.Duration().Milliseconds(),
		Summary:    summary,
	}
}

// Write outputs the summary wrapped in a JSONReport.
func (w *JSONWriter) Write(summary *model.CrawlSummary) (int, error) {
	return w.writeJSON(NewJSONReport(summary, w.version))
}

// WriteHistory outputs the sessions as a JSON array.
func (w *JSONWriter) WriteHistory(sessions []*model.CrawlSummary) (int, error) {
	if sessions == nil {
		sessions = []*model.CrawlSummary{}
	}
	return w.writeJSON(sessions)
}

// WriteItems outputs an object mapping collection names to item arrays.
func (w *JSONWriter) WriteItems(collections map[string][]*model.ContentItem) (int, error) {
	return w.writeJSON(collections)
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

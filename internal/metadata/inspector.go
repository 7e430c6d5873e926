package metadata

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nao1215/harvester/internal/model"
)

// Metadata keys written by the inspector.
const (
	KeyWidth       = "width"
	KeyHeight      = "height"
	KeyImageFormat = "image_format"
	KeyPDFVersion  = "pdf_version"
)

// Inspector adds format specific metadata to harvested items: dimensions
// and EXIF tags for images, document info for PDF files. Items of other
// kinds pass through untouched.
type Inspector struct {
	logger *slog.Logger

	// maxEXIFTags bounds the number of EXIF tags copied to one item.
	maxEXIFTags int
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMaxEXIFTags bounds how many EXIF tags are copied to an item.
func WithMaxEXIFTags(n int) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.maxEXIFTags = n
		}
	}
}

// New creates an Inspector.
func New(opts ...Option) *Inspector {
	i := &Inspector{
		logger:      slog.Default(),
		maxEXIFTags: 32,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Enrich inspects body and records what it finds in item.Metadata.
// Truncated bodies are inspected too; only the parts that were received
// are reported.
func (i *Inspector) Enrich(ctx context.Context, item *model.ContentItem, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	switch {
	case item.Kind == model.KindImage:
		return i.inspectImage(ctx, item, body)
	case isPDF(item, body):
		inspectPDF(item, body)
	}
	return nil
}

// isPDF reports whether a file item holds a PDF document.
func isPDF(item *model.ContentItem, body []byte) bool {
	if item.Kind != model.KindFile {
		return false
	}
	return item.MimeType == "application/pdf" ||
		strings.HasPrefix(string(body[:min(len(body), len(pdfMagic))]), pdfMagic)
}

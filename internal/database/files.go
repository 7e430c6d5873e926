package database

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nao1215/harvester/internal/model"
)

// maxExtensionLength keeps odd URL suffixes out of file names.
const maxExtensionLength = 8

// FileWriter writes the payload of binary items to
// <dir>/<collection>/<id><ext> and sets the item reference to that path.
// Page-text items keep their text in the store and are not written.
type FileWriter struct {
	dir string
}

// NewFileWriter returns a FileWriter rooted at dir.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

// Enrich writes body to disk. It implements the crawler's Enricher.
func (w *FileWriter) Enrich(ctx context.Context, item *model.ContentItem, body []byte) error {
	if item.Kind == model.KindPageText || !item.Kind.IsValid() || len(body) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(w.dir, item.Kind.Collection())
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create payload directory: %w", err)
	}

	name := item.ID + fileExtension(item.CanonicalURL, item.MimeType)
	target := filepath.Join(dir, name)

	// Write to a temporary file first so a crash never leaves a partial
	// payload under the final name.
	tmp, err := os.CreateTemp(dir, "."+item.ID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create payload file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close payload file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move payload file: %w", err)
	}

	item.Reference = target
	return nil
}

// fileExtension picks the extension of the URL path, falling back to the
// first extension registered for the MIME type.
func fileExtension(rawURL, mimeType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if isCleanExtension(ext) {
			return ext
		}
	}
	if mimeType != "" {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}

func isCleanExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > maxExtensionLength {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

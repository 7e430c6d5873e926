package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/harvester/internal/model"
)

func TestFileWriter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes binary payloads", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		item := model.NewContentItem("ns", model.KindImage, "http://a.test/photos/cat.JPG")
		if err := NewFileWriter(dir).Enrich(ctx, item, []byte("jpeg")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := filepath.Join(dir, "images", item.ID+".jpg")
		if item.Reference != want {
			t.Errorf("expected reference %q, got %q", want, item.Reference)
		}
		data, err := os.ReadFile(want)
		if err != nil {
			t.Fatalf("failed to read payload: %v", err)
		}
		if string(data) != "jpeg" {
			t.Errorf("expected payload jpeg, got %q", data)
		}
	})

	t.Run("skips page text", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		item := model.NewContentItem("ns", model.KindPageText, "http://a.test/")
		if err := NewFileWriter(dir).Enrich(ctx, item, []byte("<html>")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Reference != "" {
			t.Errorf("expected no reference, got %q", item.Reference)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected nothing written, got %d entries", len(entries))
		}
	})
}

func TestFileExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		mime string
		want string
	}{
		{"http://a.test/a.pdf", "", ".pdf"},
		{"http://a.test/a.tar.gz", "", ".gz"},
		{"http://a.test/download?id=1", "application/pdf", ".pdf"},
		{"http://a.test/a.weird~ext", "", ""},
		{"http://a.test/noext", "", ""},
	}
	for _, tt := range tests {
		if got := fileExtension(tt.url, tt.mime); got != tt.want {
			t.Errorf("fileExtension(%q, %q) = %q, want %q", tt.url, tt.mime, got, tt.want)
		}
	}
}

package crawler

import (
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/harvester/internal/model"
)

// mimePrefixes maps unambiguous media type prefixes to kinds.
// Types not listed here (for example application/pdf) fall through to the
// hint and extension rules.
var mimePrefixes = []struct {
	prefix string
	kind   model.ContentKind
}{
	{"image/", model.KindImage},
	{"audio/", model.KindAudio},
	{"video/", model.KindVideo},
	{"text/html", model.KindPageText},
	{"application/xhtml+xml", model.KindPageText},
}

// ambiguousMIME are declarations that say nothing about the content.
var ambiguousMIME = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/unknown":      true,
}

// extensionKinds maps lowercase file extensions to kinds.
var extensionKinds = map[string]model.ContentKind{
	// images
	".jpg": model.KindImage, ".jpeg": model.KindImage, ".png": model.KindImage, ".gif": model.KindImage,
	".webp": model.KindImage, ".svg": model.KindImage, ".bmp": model.KindImage, ".ico": model.KindImage,
	".tif": model.KindImage, ".tiff": model.KindImage, ".avif": model.KindImage, ".heic": model.KindImage,

	// audio
	".mp3": model.KindAudio, ".wav": model.KindAudio, ".ogg": model.KindAudio, ".oga": model.KindAudio,
	".m4a": model.KindAudio, ".flac": model.KindAudio, ".aac": model.KindAudio, ".opus": model.KindAudio,
	".weba": model.KindAudio, ".mid": model.KindAudio,

	// video
	".mp4": model.KindVideo, ".webm": model.KindVideo, ".mov": model.KindVideo, ".avi": model.KindVideo,
	".mkv": model.KindVideo, ".m4v": model.KindVideo, ".ogv": model.KindVideo, ".mpeg": model.KindVideo,
	".mpg": model.KindVideo, ".3gp": model.KindVideo, ".flv": model.KindVideo, ".wmv": model.KindVideo,

	// documents
	".html": model.KindPageText, ".htm": model.KindPageText, ".xhtml": model.KindPageText,
	".php": model.KindPageText, ".asp": model.KindPageText, ".aspx": model.KindPageText, ".jsp": model.KindPageText,

	// downloads
	".pdf": model.KindFile, ".doc": model.KindFile, ".docx": model.KindFile, ".xls": model.KindFile,
	".xlsx": model.KindFile, ".ppt": model.KindFile, ".pptx": model.KindFile, ".odt": model.KindFile,
	".ods": model.KindFile, ".rtf": model.KindFile, ".csv": model.KindFile, ".txt": model.KindFile,
	".json": model.KindFile, ".xml": model.KindFile, ".zip": model.KindFile, ".tar": model.KindFile,
	".gz": model.KindFile, ".tgz": model.KindFile, ".rar": model.KindFile, ".7z": model.KindFile,
	".epub": model.KindFile,
}

// DefaultDownloadExtensions are anchor targets treated as file resources.
var DefaultDownloadExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".rtf",
	".csv", ".txt", ".json", ".xml", ".zip", ".tar", ".gz", ".tgz", ".rar", ".7z", ".epub",
}

// Classify decides the kind of a fetched resource. The declared media type
// wins when it is unambiguous, then the hint from the referencing tag, then
// the URL extension. Anything else is a generic file.
func Classify(rawURL, mimeType string, hint model.ContentKind) model.ContentKind {
	if kind, ok := KindFromMIME(mimeType); ok {
		return kind
	}
	if hint.IsValid() {
		return hint
	}
	if kind, ok := KindFromExtension(rawURL); ok {
		return kind
	}
	return model.KindFile
}

// KindFromMIME maps a media type through the prefix table.
func KindFromMIME(mimeType string) (model.ContentKind, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if ambiguousMIME[mimeType] {
		return model.KindUnknown, false
	}
	for _, m := range mimePrefixes {
		if strings.HasPrefix(mimeType, m.prefix) {
			return m.kind, true
		}
	}
	return model.KindUnknown, false
}

// KindFromExtension maps the extension of a URL path through the extension table.
func KindFromExtension(rawURL string) (model.ContentKind, bool) {
	kind, ok := extensionKinds[urlExtension(rawURL)]
	return kind, ok
}

// urlExtension returns the lowercase extension of the URL path, ignoring
// query and fragment.
func urlExtension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

package model

import (
	"fmt"
	"strings"
)

// ContentKind is the classification assigned to every harvested resource.
// The zero value KindUnknown is used as "no hint" by the link extractor and
// is never persisted.
type ContentKind int

const (
	// KindUnknown means no kind is known yet.
	KindUnknown ContentKind = iota

	// KindPageText is an HTML document whose readable text is stored.
	KindPageText

	// KindImage is a raster or vector image.
	KindImage

	// KindFile is a generic downloadable file (pdf, archives, office documents...).
	// It is also the fallback kind when nothing else matches.
	KindFile

	// KindAudio is an audio stream or file.
	KindAudio

	// KindVideo is a video stream or file.
	KindVideo
)

// AllKinds lists the persistable kinds in collection order.
var AllKinds = []ContentKind{KindPageText, KindImage, KindFile, KindAudio, KindVideo}

// String returns the kind name used in logs and reports.
func (k ContentKind) String() string {
	switch k {
	case KindPageText:
		return "page-text"
	case KindImage:
		return "image"
	case KindFile:
		return "file"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Collection returns the stable storage collection name for the kind.
// These names are part of the query contract and must not change.
func (k ContentKind) Collection() string {
	switch k {
	case KindPageText:
		return "content"
	case KindImage:
		return "images"
	case KindFile:
		return "files"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "videos"
	default:
		return ""
	}
}

// IsValid reports whether the kind can be persisted.
func (k ContentKind) IsValid() bool {
	return k >= KindPageText && k <= KindVideo
}

// MarshalText encodes the kind by name so JSON output stays readable.
func (k ContentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name or a collection name.
func (k *ContentKind) UnmarshalText(text []byte) error {
	parsed, err := ParseContentKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseContentKind accepts either a kind name ("image") or its collection
// name ("images"). Matching is case-insensitive.
func ParseContentKind(s string) (ContentKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds {
		if name == k.String() || name == k.Collection() {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownContentKind, s)
}

// FilterAll is the filter value selecting every collection.
const FilterAll = "all"

// ContentFilter selects which kinds a crawl persists.
// The empty filter selects everything.
type ContentFilter struct {
	kinds map[ContentKind]bool
}

// ParseContentFilter parses one of content|images|files|audio|videos|all.
// An empty string is treated as "all".
func ParseContentFilter(s string) (ContentFilter, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == FilterAll {
		return ContentFilter{}, nil
	}
	for _, k := range AllKinds {
		if name == k.Collection() {
			return ContentFilter{kinds: map[ContentKind]bool{k: true}}, nil
		}
	}
	return ContentFilter{}, fmt.Errorf("%w: %q (want content, images, files, audio, videos or all)", ErrInvalidContentFilter, s)
}

// NewContentFilter builds a filter selecting only the given kinds.
// Calling it with no kinds selects everything.
func NewContentFilter(kinds ...ContentKind) ContentFilter {
	if len(kinds) == 0 {
		return ContentFilter{}
	}
	m := make(map[ContentKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return ContentFilter{kinds: m}
}

// Allows reports whether items of kind k should be persisted.
func (f ContentFilter) Allows(k ContentKind) bool {
	if !k.IsValid() {
		return false
	}
	if len(f.kinds) == 0 {
		return true
	}
	return f.kinds[k]
}

// IsAll reports whether the filter selects every kind.
func (f ContentFilter) IsAll() bool {
	return len(f.kinds) == 0
}

// Kinds returns the selected kinds in collection order.
func (f ContentFilter) Kinds() []ContentKind {
	var out []ContentKind
	for _, k := range AllKinds {
		if f.Allows(k) {
			out = append(out, k)
		}
	}
	return out
}

// String returns the filter in its command line form.
func (f ContentFilter) String() string {
	if f.IsAll() {
		return FilterAll
	}
	names := make([]string, 0, len(f.kinds))
	for _, k := range f.Kinds() {
		names = append(names, k.Collection())
	}
	return strings.Join(names, ",")
}

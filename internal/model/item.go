package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// ContentItem is one classified, persisted resource.
// Items are created right after a successful fetch and classification and
// are not modified once handed to a sink.
type ContentItem struct {
	// ID is the stable identifier derived from namespace, kind and canonical URL.
	ID string `json:"id"`

	// Namespace is the storage partition the item belongs to.
	Namespace string `json:"namespace"`

	// Kind is the classification of the resource.
	Kind ContentKind `json:"kind"`

	// CanonicalURL is the canonical URL after redirects.
	CanonicalURL string `json:"canonical_url"`

	// SourceURL is the canonical URL that was claimed from the frontier.
	// It differs from CanonicalURL only when the server redirected.
	SourceURL string `json:"source_url,omitempty"`

	// MimeType is the declared media type without parameters.
	MimeType string `json:"mime_type"`

	// SizeBytes is the number of body bytes received.
	SizeBytes int64 `json:"size_bytes"`

	// Truncated is set when the body exceeded the configured size limit.
	Truncated bool `json:"truncated,omitempty"`

	// Payload holds the extracted text for page-text items.
	Payload string `json:"payload,omitempty"`

	// Reference points at the stored bytes for binary items: either a local
	// file path or the canonical URL itself.
	Reference string `json:"reference,omitempty"`

	// Title is the document title for page-text items.
	Title string `json:"title,omitempty"`

	// ContentHash is the SHA-256 of the fetched body.
	ContentHash string `json:"content_hash,omitempty"`

	// Metadata holds kind specific attributes such as image dimensions,
	// EXIF tags or a page description.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Depth is the crawl depth at which the resource was claimed.
	Depth int `json:"depth"`

	// FetchedAt is when the body was received.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewContentItem returns an item with its stable ID filled in.
func NewContentItem(namespace string, kind ContentKind, canonicalURL string) *ContentItem {
	return &ContentItem{
		ID:           ItemID(namespace, kind, canonicalURL),
		Namespace:    namespace,
		Kind:         kind,
		CanonicalURL: canonicalURL,
		FetchedAt:    time.Now().UTC(),
	}
}

// ItemID returns the identifier for the (namespace, kind, canonicalURL) key.
// The same key always yields the same identifier.
func ItemID(namespace string, kind ContentKind, canonicalURL string) string {
	h := sha3.New256()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(kind.String()))
	h.Write([]byte{0})
	h.Write([]byte(canonicalURL))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// ComputeHash sets ContentHash and SizeBytes from body.
func (i *ContentItem) ComputeHash(body []byte) {
	i.SizeBytes = int64(len(body))
	if len(body) == 0 {
		i.ContentHash = ""
		return
	}
	sum := sha256.Sum256(body)
	i.ContentHash = hex.EncodeToString(sum[:])
}

// SetMetadata stores a metadata attribute, ignoring empty values.
func (i *ContentItem) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if i.Metadata == nil {
		i.Metadata = make(map[string]string)
	}
	i.Metadata[key] = value
}

// Key returns the idempotency key of the item.
func (i *ContentItem) Key() ItemKey {
	return ItemKey{Namespace: i.Namespace, Kind: i.Kind, CanonicalURL: i.CanonicalURL}
}

// ItemKey identifies an item inside a sink.
type ItemKey struct {
	Namespace    string
	Kind         ContentKind
	CanonicalURL string
}

// StoreStatus reports what a sink did with an item.
type StoreStatus int

const (
	// StoreInserted means the item did not exist and was created.
	StoreInserted StoreStatus = iota + 1
	// StoreUpdated means the item existed and its content changed.
	StoreUpdated
	// StoreUnchanged means an identical item was already stored.
	StoreUnchanged
)

// String returns the status name.
func (s StoreStatus) String() string {
	switch s {
	case StoreInserted:
		return "inserted"
	case StoreUpdated:
		return "updated"
	case StoreUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// StoreAck is the acknowledgement returned by a sink.
type StoreAck struct {
	ID     string
	Status StoreStatus
}

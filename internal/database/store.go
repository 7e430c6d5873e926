package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nao1215/harvester/internal/model"
)

var (
	// ErrInvalidItem is returned when an item cannot be stored: it is nil,
	// has no canonical URL, an unpersistable kind or belongs to another namespace.
	ErrInvalidItem = errors.New("invalid content item")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrSessionNotFound is returned when a session id is not in the history.
	ErrSessionNotFound = errors.New("session not found")
)

// Store persists harvested items, one collection per content kind, and
// reads them back.
//
// Store is idempotent on (namespace, kind, canonical URL): storing the same
// key twice never creates a second item.
type Store interface {
	// Prepare checks that namespace can be written to.
	Prepare(ctx context.Context, namespace string) error

	// Store inserts or updates item.
	Store(ctx context.Context, namespace string, item *model.ContentItem) (model.StoreAck, error)

	// QueryAll returns the items of namespace. A nil kind returns every
	// collection.
	QueryAll(ctx context.Context, namespace string, kind *model.ContentKind) ([]*model.ContentItem, error)

	// Close releases the store.
	Close() error
}

// SessionStore keeps the summaries of past crawl sessions.
type SessionStore interface {
	// SaveSession records a finished session.
	SaveSession(ctx context.Context, summary *model.CrawlSummary) error

	// ListSessions returns the most recent sessions first. An empty
	// namespace lists every namespace; limit <= 0 means no limit.
	ListSessions(ctx context.Context, namespace string, limit int) ([]*model.CrawlSummary, error)

	// GetSession returns one session or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*model.CrawlSummary, error)
}

// checkItem validates item before it is written to namespace.
func checkItem(namespace string, item *model.ContentItem) error {
	if err := model.ValidateNamespace(namespace); err != nil {
		return err
	}
	switch {
	case item == nil:
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	case item.CanonicalURL == "":
		return fmt.Errorf("%w: empty canonical URL", ErrInvalidItem)
	case !item.Kind.IsValid():
		return fmt.Errorf("%w: kind %s cannot be persisted", ErrInvalidItem, item.Kind)
	case item.Namespace != "" && item.Namespace != namespace:
		return fmt.Errorf("%w: item namespace %q does not match %q", ErrInvalidItem, item.Namespace, namespace)
	}
	return nil
}

// prepareItem fills the fields a store relies on and returns the key
// derived identifier.
func prepareItem(namespace string, item *model.ContentItem) string {
	item.Namespace = namespace
	item.ID = model.ItemID(namespace, item.Kind, item.CanonicalURL)
	return item.ID
}

// sameContent reports whether stored and item hold the same content, in
// which case storing item again is a no-op.
func sameContent(stored, item *model.ContentItem) bool {
	if stored.ContentHash != item.ContentHash ||
		stored.Title != item.Title ||
		stored.Reference != item.Reference ||
		stored.MimeType != item.MimeType ||
		len(stored.Metadata) != len(item.Metadata) {
		return false
	}
	for k, v := range item.Metadata {
		if stored.Metadata[k] != v {
			return false
		}
	}
	return true
}

// sortItems orders items by collection, then fetch time, then URL so that
// every store returns query results in the same order.
func sortItems(items []*model.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.Before(b.FetchedAt)
		}
		return a.CanonicalURL < b.CanonicalURL
	})
}

// GroupByCollection splits items into their collections, keyed by the
// collection name (content, images, files, audio, videos).
func GroupByCollection(items []*model.ContentItem) map[string][]*model.ContentItem {
	out := make(map[string][]*model.ContentItem)
	for _, item := range items {
		name := item.Kind.Collection()
		out[name] = append(out[name], item)
	}
	return out
}

// sortSessions orders sessions most recent first.
func sortSessions(sessions []*model.CrawlSummary) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
}

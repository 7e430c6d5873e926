package database

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/nao1215/harvester/internal/model"
)

// MemoryStore is an in-process Store and SessionStore. It is safe for
// concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[model.ItemKey]*model.ContentItem
	sessions map[string]*model.CrawlSummary
	closed   bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[model.ItemKey]*model.ContentItem),
		sessions: make(map[string]*model.CrawlSummary),
	}
}

// Prepare validates namespace.
func (m *MemoryStore) Prepare(_ context.Context, namespace string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStoreClosed
	}
	return model.ValidateNamespace(namespace)
}

// Store keeps a copy of item.
func (m *MemoryStore) Store(_ context.Context, namespace string, item *model.ContentItem) (model.StoreAck, error) {
	if err := checkItem(namespace, item); err != nil {
		return model.StoreAck{}, err
	}
	id := prepareItem(namespace, item)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return model.StoreAck{}, ErrStoreClosed
	}

	key := item.Key()
	status := model.StoreInserted
	if stored, ok := m.items[key]; ok {
		if sameContent(stored, item) {
			return model.StoreAck{ID: id, Status: model.StoreUnchanged}, nil
		}
		status = model.StoreUpdated
	}
	m.items[key] = copyItem(item)
	return model.StoreAck{ID: id, Status: status}, nil
}

// QueryAll returns copies of the stored items.
func (m *MemoryStore) QueryAll(_ context.Context, namespace string, kind *model.ContentKind) ([]*model.ContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	var items []*model.ContentItem
	for key, item := range m.items {
		if key.Namespace != namespace {
			continue
		}
		if kind != nil && key.Kind != *kind {
			continue
		}
		items = append(items, copyItem(item))
	}
	sortItems(items)
	return items, nil
}

// Len returns the number of stored items over all namespaces.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// SaveSession records a copy of summary.
func (m *MemoryStore) SaveSession(_ context.Context, summary *model.CrawlSummary) error {
	if summary == nil || summary.SessionID == "" {
		return fmt.Errorf("session summary has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.sessions[summary.SessionID] = copySummary(summary)
	return nil
}

// ListSessions returns past sessions, most recent first.
func (m *MemoryStore) ListSessions(_ context.Context, namespace string, limit int) ([]*model.CrawlSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	var out []*model.CrawlSummary
	for _, s := range m.sessions {
		if namespace != "" && s.Namespace != namespace {
			continue
		}
		out = append(out, copySummary(s))
	}
	sortSessions(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetSession returns a copy of one session.
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*model.CrawlSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return copySummary(s), nil
}

// Close marks the store closed. Stored data is kept for inspection.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyItem(item *model.ContentItem) *model.ContentItem {
	c := *item
	c.Metadata = maps.Clone(item.Metadata)
	return &c
}

func copySummary(s *model.CrawlSummary) *model.CrawlSummary {
	c := *s
	c.ItemsByKind = maps.Clone(s.ItemsByKind)
	c.FailedURLs = append([]model.FailedURL(nil), s.FailedURLs...)
	return &c
}

package harvest

import (
	"context"
	"fmt"

	"github.com/nao1215/harvester/internal/database"
	"github.com/nao1215/harvester/internal/model"
)

// Query returns the items harvested into the namespace of outputDir,
// grouped by collection name. Every selected collection has a key, empty
// or not. When nothing was found the error matches ErrNoContent.
func (s *Service) Query(ctx context.Context, outputDir string, filter model.ContentFilter) (map[string][]*model.ContentItem, error) {
	ns, err := model.NamespaceFromDir(outputDir)
	if err != nil {
		return nil, err
	}

	var kind *model.ContentKind
	kinds := filter.Kinds()
	if !filter.IsAll() && len(kinds) == 1 {
		kind = &kinds[0]
	}

	items, err := s.store.QueryAll(ctx, ns, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", ns, err)
	}

	grouped := database.GroupByCollection(items)
	out := make(map[string][]*model.ContentItem, len(kinds))
	total := 0
	for _, k := range kinds {
		name := k.Collection()
		got := grouped[name]
		if got == nil {
			got = []*model.ContentItem{}
		}
		out[name] = got
		total += len(got)
	}

	if total == 0 {
		if kind != nil {
			return nil, &NoContentError{Collection: kind.Collection()}
		}
		return nil, &NoContentError{}
	}
	return out, nil
}

// History returns past sessions, most recent first. An empty outputDir
// lists every namespace; limit <= 0 means no limit.
func (s *Service) History(ctx context.Context, outputDir string, limit int) ([]*model.CrawlSummary, error) {
	history, ok := s.store.(database.SessionStore)
	if !ok {
		return nil, ErrNoHistory
	}

	ns := ""
	if outputDir != "" {
		var err error
		if ns, err = model.NamespaceFromDir(outputDir); err != nil {
			return nil, err
		}
	}
	return history.ListSessions(ctx, ns, limit)
}

// Session returns one past session by id.
func (s *Service) Session(ctx context.Context, sessionID string) (*model.CrawlSummary, error) {
	history, ok := s.store.(database.SessionStore)
	if !ok {
		return nil, ErrNoHistory
	}
	return history.GetSession(ctx, sessionID)
}

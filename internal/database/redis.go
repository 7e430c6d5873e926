package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/harvester/internal/model"
)

// DefaultRedisPrefix is the key prefix used when none is configured.
const DefaultRedisPrefix = "harvester"

// maxSessionHistory bounds the session list kept per namespace.
const maxSessionHistory = 500

// maxWatchRetries bounds optimistic transaction retries on one item key.
const maxWatchRetries = 5

// RedisStore keeps every collection of a namespace in one Redis hash,
// item id -> JSON item, under "<prefix>:<namespace>:<collection>".
// Session summaries are kept in a list per namespace and in a hash by id.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Addr is host:port of the Redis server.
	Addr string

	// Password is the optional AUTH password.
	Password string

	// DB selects the Redis database.
	DB int

	// Prefix is the key prefix. Defaults to DefaultRedisPrefix.
	Prefix string
}

// NewRedisStore creates a RedisStore. The connection is established lazily;
// Prepare reports an unreachable server.
func NewRedisStore(opts RedisOptions) *RedisStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: prefix,
	}
}

// NewRedisStoreFromURL creates a RedisStore from a redis:// URL.
func NewRedisStoreFromURL(rawURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: prefix}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) collectionKey(namespace string, kind model.ContentKind) string {
	return s.prefix + ":" + namespace + ":" + kind.Collection()
}

func (s *RedisStore) namespacesKey() string {
	return s.prefix + ":namespaces"
}

func (s *RedisStore) sessionListKey(namespace string) string {
	return s.prefix + ":" + namespace + ":sessions"
}

func (s *RedisStore) sessionsKey() string {
	return s.prefix + ":sessions"
}

// Prepare checks the server is reachable and registers namespace.
func (s *RedisStore) Prepare(ctx context.Context, namespace string) error {
	if err := model.ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	return s.client.SAdd(ctx, s.namespacesKey(), namespace).Err()
}

// Store writes item into its collection hash. The read-compare-write runs
// under WATCH so concurrent stores of one key cannot both insert.
func (s *RedisStore) Store(ctx context.Context, namespace string, item *model.ContentItem) (model.StoreAck, error) {
	if err := checkItem(namespace, item); err != nil {
		return model.StoreAck{}, err
	}
	id := prepareItem(namespace, item)
	key := s.collectionKey(namespace, item.Kind)

	payload, err := json.Marshal(item)
	if err != nil {
		return model.StoreAck{}, fmt.Errorf("failed to serialize item: %w", err)
	}

	var status model.StoreStatus
	txf := func(tx *redis.Tx) error {
		existing, err := tx.HGet(ctx, key, id).Result()
		switch {
		case errors.Is(err, redis.Nil):
			status = model.StoreInserted
		case err != nil:
			return err
		default:
			var stored model.ContentItem
			if err := json.Unmarshal([]byte(existing), &stored); err == nil && sameContent(&stored, item) {
				status = model.StoreUnchanged
				return nil
			}
			status = model.StoreUpdated
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, payload)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return model.StoreAck{}, fmt.Errorf("failed to store item: %w", err)
	}
	return model.StoreAck{ID: id, Status: status}, nil
}

// QueryAll reads the collection hashes of namespace.
func (s *RedisStore) QueryAll(ctx context.Context, namespace string, kind *model.ContentKind) ([]*model.ContentItem, error) {
	kinds := model.AllKinds
	if kind != nil {
		kinds = []model.ContentKind{*kind}
	}

	var items []*model.ContentItem
	for _, k := range kinds {
		values, err := s.client.HVals(ctx, s.collectionKey(namespace, k)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", k.Collection(), err)
		}
		for _, v := range values {
			var item model.ContentItem
			if err := json.Unmarshal([]byte(v), &item); err != nil {
				return nil, fmt.Errorf("failed to decode %s item: %w", k.Collection(), err)
			}
			items = append(items, &item)
		}
	}
	sortItems(items)
	return items, nil
}

// Namespaces lists every namespace registered by Prepare.
func (s *RedisStore) Namespaces(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.namespacesKey()).Result()
}

// SaveSession records summary and keeps the newest sessions per namespace.
func (s *RedisStore) SaveSession(ctx context.Context, summary *model.CrawlSummary) error {
	if summary == nil || summary.SessionID == "" {
		return errors.New("session summary has no id")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	listKey := s.sessionListKey(summary.Namespace)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionsKey(), summary.SessionID, data)
		pipe.LRem(ctx, listKey, 0, summary.SessionID)
		pipe.LPush(ctx, listKey, summary.SessionID)
		pipe.LTrim(ctx, listKey, 0, maxSessionHistory-1)
		pipe.SAdd(ctx, s.namespacesKey(), summary.Namespace)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ListSessions returns past sessions, most recent first.
func (s *RedisStore) ListSessions(ctx context.Context, namespace string, limit int) ([]*model.CrawlSummary, error) {
	namespaces := []string{namespace}
	if namespace == "" {
		var err error
		namespaces, err = s.Namespaces(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list namespaces: %w", err)
		}
	}

	var ids []string
	for _, ns := range namespaces {
		nsIDs, err := s.client.LRange(ctx, s.sessionListKey(ns), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		ids = append(ids, nsIDs...)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.sessionsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	var out []*model.CrawlSummary
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var summary model.CrawlSummary
		if err := json.Unmarshal([]byte(data), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		out = append(out, &summary)
	}
	sortSessions(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetSession returns one session.
func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*model.CrawlSummary, error) {
	data, err := s.client.HGet(ctx, s.sessionsKey(), sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var summary model.CrawlSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &summary, nil
}

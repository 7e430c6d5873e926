package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/harvester/internal/model"
)

// DBFileName is the name of the SQLite database file inside the data directory.
const DBFileName = "harvester.db"

// SQLiteStore stores harvested items and session summaries in one SQLite
// database. Namespaces are a column, not separate files, so one database
// can hold many crawl targets.
type SQLiteStore struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SQLiteStore behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so queries can run while a
	// crawl writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*SQLiteStore, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	// Other processes may hold the write lock for a moment, e.g. a query
	// running during a crawl.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer. Workers share this connection and
	// their stores are serialized here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *SQLiteStore) createTables() error {
	schema := `
	-- One row per (namespace, kind, canonical URL)
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		kind TEXT NOT NULL,
		canonical_url TEXT NOT NULL,
		source_url TEXT,
		mime_type TEXT,
		size_bytes INTEGER DEFAULT 0,
		truncated INTEGER DEFAULT 0,
		payload TEXT,
		reference TEXT,
		title TEXT,
		content_hash TEXT,
		metadata TEXT,
		depth INTEGER DEFAULT 0,
		fetched_at TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(namespace, kind, canonical_url)
	);

	CREATE INDEX IF NOT EXISTS idx_items_namespace_kind ON items(namespace, kind);

	-- Summaries of finished crawl sessions
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		seed_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_visited INTEGER DEFAULT 0,
		items INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		summary TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_namespace ON sessions(namespace);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Prepare checks that namespace is valid and the database is reachable.
func (s *SQLiteStore) Prepare(ctx context.Context, namespace string) error {
	if err := model.ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	return nil
}

// Store inserts item, updates it when its content changed, or leaves it
// alone when an identical item is already stored.
func (s *SQLiteStore) Store(ctx context.Context, namespace string, item *model.ContentItem) (model.StoreAck, error) {
	if err := checkItem(namespace, item); err != nil {
		return model.StoreAck{}, err
	}
	id := prepareItem(namespace, item)

	metadata, err := encodeMetadata(item.Metadata)
	if err != nil {
		return model.StoreAck{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StoreAck{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := scanItem(tx.QueryRowContext(ctx, selectItemSQL+" WHERE id = ?", id))
	status := model.StoreInserted
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (id, namespace, kind, canonical_url, source_url, mime_type,
				size_bytes, truncated, payload, reference, title, content_hash, metadata, depth, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, namespace, item.Kind.String(), item.CanonicalURL, item.SourceURL, item.MimeType,
			item.SizeBytes, item.Truncated, item.Payload, item.Reference, item.Title, item.ContentHash,
			metadata, item.Depth, formatTimestamp(item.FetchedAt))
		if err != nil {
			return model.StoreAck{}, fmt.Errorf("failed to insert item: %w", err)
		}
	case err != nil:
		return model.StoreAck{}, fmt.Errorf("failed to read item: %w", err)
	case sameContent(stored, item):
		return model.StoreAck{ID: id, Status: model.StoreUnchanged}, nil
	default:
		status = model.StoreUpdated
		_, err = tx.ExecContext(ctx, `
			UPDATE items SET source_url = ?, mime_type = ?, size_bytes = ?, truncated = ?,
				payload = ?, reference = ?, title = ?, content_hash = ?, metadata = ?,
				depth = ?, fetched_at = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, item.SourceURL, item.MimeType, item.SizeBytes, item.Truncated, item.Payload, item.Reference,
			item.Title, item.ContentHash, metadata, item.Depth, formatTimestamp(item.FetchedAt), id)
		if err != nil {
			return model.StoreAck{}, fmt.Errorf("failed to update item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.StoreAck{}, fmt.Errorf("failed to commit item: %w", err)
	}
	return model.StoreAck{ID: id, Status: status}, nil
}

const selectItemSQL = `
	SELECT id, namespace, kind, canonical_url, source_url, mime_type, size_bytes, truncated,
		payload, reference, title, content_hash, metadata, depth, fetched_at
	FROM items`

// QueryAll returns the items stored under namespace, optionally only one kind.
func (s *SQLiteStore) QueryAll(ctx context.Context, namespace string, kind *model.ContentKind) ([]*model.ContentItem, error) {
	query := selectItemSQL + " WHERE namespace = ?"
	args := []any{namespace}
	if kind != nil {
		query += " AND kind = ?"
		args = append(args, kind.String())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*model.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	sortItems(items)
	return items, nil
}

// Namespaces lists every namespace with at least one stored item.
func (s *SQLiteStore) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT namespace FROM items ORDER BY namespace")
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.ContentItem, error) {
	var (
		item                                 model.ContentItem
		kind, fetchedAt                      string
		sourceURL, mimeType, payload         sql.NullString
		reference, title, hash, metadataJSON sql.NullString
	)
	err := row.Scan(&item.ID, &item.Namespace, &kind, &item.CanonicalURL, &sourceURL, &mimeType,
		&item.SizeBytes, &item.Truncated, &payload, &reference, &title, &hash, &metadataJSON,
		&item.Depth, &fetchedAt)
	if err != nil {
		return nil, err
	}

	item.Kind, err = model.ParseContentKind(kind)
	if err != nil {
		return nil, err
	}
	item.SourceURL = sourceURL.String
	item.MimeType = mimeType.String
	item.Payload = payload.String
	item.Reference = reference.String
	item.Title = title.String
	item.ContentHash = hash.String
	item.FetchedAt = parseTimestamp(fetchedAt)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &item.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", item.CanonicalURL, err)
		}
	}
	return &item, nil
}

// SaveSession records a finished session. Saving the same session twice
// replaces the earlier record.
func (s *SQLiteStore) SaveSession(ctx context.Context, summary *model.CrawlSummary) error {
	if summary == nil || summary.SessionID == "" {
		return errors.New("session summary has no id")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, namespace, seed_url, started_at, finished_at,
			pages_visited, items, failed, cancelled, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			pages_visited = excluded.pages_visited,
			items = excluded.items,
			failed = excluded.failed,
			cancelled = excluded.cancelled,
			summary = excluded.summary
	`, summary.SessionID, summary.Namespace, summary.SeedURL,
		formatTimestamp(summary.StartedAt), formatTimestamp(summary.FinishedAt),
		summary.PagesVisited, summary.TotalItems(), len(summary.FailedURLs), summary.Cancelled, string(data))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ListSessions returns past sessions, most recent first.
func (s *SQLiteStore) ListSessions(ctx context.Context, namespace string, limit int) ([]*model.CrawlSummary, error) {
	var (
		clauses []string
		args    []any
	)
	query := "SELECT summary FROM sessions"
	if namespace != "" {
		clauses = append(clauses, "namespace = ?")
		args = append(args, namespace)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.CrawlSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		var summary model.CrawlSummary
		if err := json.Unmarshal([]byte(data), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, &summary)
	}
	return sessions, rows.Err()
}

// GetSession returns the summary of one session.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.CrawlSummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT summary FROM sessions WHERE id = ?", sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to serialize metadata: %w", err)
	}
	return string(data), nil
}

// formatTimestamp stores times in UTC with a fixed width so that text
// ordering in SQL matches time ordering.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02T15:04:05.000000000Z", // format written by formatTimestamp
	"2006-01-02 15:04:05",            // SQLite default datetime format
	"2006-01-02T15:04:05Z",           // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",            // ISO 8601 without timezone
	time.RFC3339,                     // Full RFC3339 format
	time.RFC3339Nano,                 // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999",        // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

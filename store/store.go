// Package store persists bookmarks, their tags, and user settings in
// SQLite. It is the default collaborator behind SAVE_BOOKMARK and
// GET_CONFIG; the orchestrator only sees its interface.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linkeep/linkeep/dbopen"
	"github.com/linkeep/linkeep/idgen"
)

// ErrExists is returned when a bookmark with the same URL is already
// stored.
var ErrExists = errors.New("store: bookmark with this URL already exists")

// ErrNotFound is returned when a bookmark ID does not exist.
var ErrNotFound = errors.New("store: bookmark not found")

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	thumbnail   TEXT NOT NULL DEFAULT '',
	favicon     TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bookmark_tags (
	bookmark_id TEXT NOT NULL REFERENCES bookmarks(id) ON DELETE CASCADE,
	tag         TEXT NOT NULL,
	PRIMARY KEY (bookmark_id, tag)
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Bookmark is one saved bookmark.
type Bookmark struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Thumbnail   string   `json:"thumbnail"`
	Favicon     string   `json:"favicon"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

// Store wraps the linkeep SQLite database.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Open opens (and migrates) the store at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{DB: db, newID: idgen.Prefixed("bmk_", idgen.Default)}, nil
}

// Wrap builds a Store around an existing database handle. Used in tests
// with an in-memory database.
func Wrap(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{DB: db, newID: idgen.Prefixed("bmk_", idgen.Default)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// SaveBookmark inserts a bookmark and its tags. Returns ErrExists when
// the URL is already stored; the existing bookmark's ID travels back
// alongside the error so the caller can report "already exists" with a
// reference.
func (s *Store) SaveBookmark(ctx context.Context, b Bookmark) (string, error) {
	if b.URL == "" {
		return "", fmt.Errorf("store: bookmark url is required")
	}

	var existing string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id FROM bookmarks WHERE url = ?`, b.URL).Scan(&existing)
	switch {
	case err == nil:
		return existing, ErrExists
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("store: lookup url: %w", err)
	}

	id := b.ID
	if id == "" {
		id = s.newID()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookmarks (id, url, title, description, content, thumbnail, favicon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, b.URL, b.Title, b.Description, b.Content, b.Thumbnail, b.Favicon,
		time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("store: insert bookmark: %w", err)
	}

	for _, tag := range b.Tags {
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO bookmark_tags (bookmark_id, tag) VALUES (?, ?)`,
			id, tag); err != nil {
			return "", fmt.Errorf("store: insert tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return id, nil
}

// GetBookmark loads one bookmark with its tags.
func (s *Store) GetBookmark(ctx context.Context, id string) (*Bookmark, error) {
	var b Bookmark
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, url, title, description, content, thumbnail, favicon, created_at
		 FROM bookmarks WHERE id = ?`, id).
		Scan(&b.ID, &b.URL, &b.Title, &b.Description, &b.Content,
			&b.Thumbnail, &b.Favicon, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get bookmark: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT tag FROM bookmark_tags WHERE bookmark_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("store: scan tag: %w", err)
		}
		b.Tags = append(b.Tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: tags rows: %w", err)
	}
	return &b, nil
}

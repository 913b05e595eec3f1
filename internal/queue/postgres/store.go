// Package postgres implements queue.Store on top of PostgreSQL, following
// the same DB-interface pattern as internal/glossary/postgres.Store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arcveil/inkbridge/internal/queue"
)

// Schema is the SQL DDL for the queue table and its indices (§3, §4.4,
// §6.2). position has no UNIQUE constraint: compaction after Remove/Clear
// is done by UPDATE statements issued one after another, not inside a
// transaction, matching the original's position-shifting UPDATE statements.
const Schema = `
CREATE TABLE IF NOT EXISTS queue_items (
    id             TEXT PRIMARY KEY,
    book_id        TEXT NOT NULL,
    chapter_number INTEGER NOT NULL DEFAULT 0,
    title          TEXT NOT NULL,
    source         TEXT NOT NULL DEFAULT '',
    content        TEXT NOT NULL,
    metadata       TEXT NOT NULL DEFAULT '',
    position       INTEGER NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queue_items_book_id ON queue_items(book_id);
CREATE INDEX IF NOT EXISTS idx_queue_items_position ON queue_items(position);
`

// DB is the subset of *pgxpool.Pool / *pgx.Conn that Store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [queue.Store] backed by PostgreSQL.
type Store struct {
	db DB
}

var _ queue.Store = (*Store)(nil)

// New returns a [Store] backed by db. Call [Store.Migrate] once at startup.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes [Schema] against the database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("queue/postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Enqueue(ctx context.Context, item queue.Item) (queue.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = time.Now().UTC()

	var maxPos *int
	err := s.db.QueryRow(ctx, `SELECT MAX(position) FROM queue_items`).Scan(&maxPos)
	if err != nil {
		return queue.Item{}, fmt.Errorf("queue/postgres: enqueue: max position: %w", err)
	}
	item.Position = 0
	if maxPos != nil {
		item.Position = *maxPos + 1
	}

	contentJSON, err := json.Marshal(item.Content)
	if err != nil {
		return queue.Item{}, fmt.Errorf("queue/postgres: enqueue: marshal content: %w", err)
	}
	var metadataJSON string
	if len(item.Metadata) > 0 {
		raw, err := json.Marshal(item.Metadata)
		if err != nil {
			return queue.Item{}, fmt.Errorf("queue/postgres: enqueue: marshal metadata: %w", err)
		}
		metadataJSON = string(raw)
	}

	const insert = `
		INSERT INTO queue_items (id, book_id, chapter_number, title, source, content, metadata, position, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = s.db.Exec(ctx, insert,
		item.ID, item.BookID, item.ChapterNumber, item.Title, item.Source, string(contentJSON), metadataJSON, item.Position, item.CreatedAt,
	)
	if err != nil {
		return queue.Item{}, fmt.Errorf("queue/postgres: enqueue: %w", err)
	}
	return item, nil
}

func (s *Store) Dequeue(ctx context.Context, bookID string) (queue.Item, error) {
	query := `
		SELECT id, book_id, chapter_number, title, source, content, metadata, position, created_at
		FROM queue_items`
	args := []any{}
	if bookID != "" {
		query += ` WHERE book_id = $1`
		args = append(args, bookID)
	}
	query += ` ORDER BY position ASC LIMIT 1`

	item, err := scanItem(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return queue.Item{}, queue.ErrEmpty
	}
	if err != nil {
		return queue.Item{}, fmt.Errorf("queue/postgres: dequeue: %w", err)
	}
	return item, nil
}

func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	var position int
	err := s.db.QueryRow(ctx, `SELECT position FROM queue_items WHERE id = $1`, id).Scan(&position)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue/postgres: remove: find position: %w", err)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM queue_items WHERE id = $1`, id); err != nil {
		return false, fmt.Errorf("queue/postgres: remove: %w", err)
	}
	if _, err := s.db.Exec(ctx, `UPDATE queue_items SET position = position - 1 WHERE position > $1`, position); err != nil {
		return false, fmt.Errorf("queue/postgres: remove: compact: %w", err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, bookID string) ([]queue.Item, error) {
	query := `
		SELECT id, book_id, chapter_number, title, source, content, metadata, position, created_at
		FROM queue_items`
	args := []any{}
	if bookID != "" {
		query += ` WHERE book_id = $1`
		args = append(args, bookID)
	}
	query += ` ORDER BY position ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue/postgres: list: %w", err)
	}
	defer rows.Close()

	var out []queue.Item
	for rows.Next() {
		item, err := scanItemRows(rows)
		if err != nil {
			return nil, fmt.Errorf("queue/postgres: list: scan: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) Clear(ctx context.Context, bookID string) (int, error) {
	var tag pgconn.CommandTag
	var err error
	if bookID != "" {
		tag, err = s.db.Exec(ctx, `DELETE FROM queue_items WHERE book_id = $1`, bookID)
	} else {
		tag, err = s.db.Exec(ctx, `DELETE FROM queue_items`)
	}
	if err != nil {
		return 0, fmt.Errorf("queue/postgres: clear: %w", err)
	}
	count := int(tag.RowsAffected())

	rows, err := s.db.Query(ctx, `SELECT id FROM queue_items ORDER BY position ASC`)
	if err != nil {
		return count, fmt.Errorf("queue/postgres: clear: recompact: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return count, fmt.Errorf("queue/postgres: clear: recompact scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("queue/postgres: clear: recompact: %w", err)
	}

	for i, id := range ids {
		if _, err := s.db.Exec(ctx, `UPDATE queue_items SET position = $2 WHERE id = $1`, id, i); err != nil {
			return count, fmt.Errorf("queue/postgres: clear: recompact position %d: %w", i, err)
		}
	}
	return count, nil
}

func (s *Store) Count(ctx context.Context, bookID string) (int, error) {
	var count int
	var err error
	if bookID != "" {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM queue_items WHERE book_id = $1`, bookID).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("queue/postgres: count: %w", err)
	}
	return count, nil
}

func (s *Store) HasDuplicate(ctx context.Context, bookID string, chapterNumber int) (bool, error) {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM queue_items WHERE book_id = $1 AND chapter_number = $2 LIMIT 1`,
		bookID, chapterNumber).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue/postgres: has duplicate: %w", err)
	}
	return true, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (queue.Item, error) {
	var item queue.Item
	var contentJSON, metadataJSON string
	err := row.Scan(&item.ID, &item.BookID, &item.ChapterNumber, &item.Title, &item.Source, &contentJSON, &metadataJSON, &item.Position, &item.CreatedAt)
	if err != nil {
		return queue.Item{}, err
	}
	if err := json.Unmarshal([]byte(contentJSON), &item.Content); err != nil {
		return queue.Item{}, fmt.Errorf("unmarshal content: %w", err)
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &item.Metadata); err != nil {
			return queue.Item{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return item, nil
}

func scanItemRows(rows pgx.Rows) (queue.Item, error) {
	return scanItem(rows)
}

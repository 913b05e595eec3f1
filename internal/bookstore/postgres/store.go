// Package postgres implements bookstore.Store on top of PostgreSQL, using
// the same DB-interface pattern as internal/glossary/postgres.Store.
// Chapter content is stored as JSON-encoded text in TEXT columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arcveil/inkbridge/internal/bookstore"
)

// Schema is the SQL DDL for the books and chapters tables and their
// indices (§3, §6.2).
const Schema = `
CREATE TABLE IF NOT EXISTS books (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL UNIQUE,
    author           TEXT NOT NULL DEFAULT '',
    source_language  TEXT NOT NULL DEFAULT '',
    target_language  TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL,
    modified_at      TIMESTAMPTZ NOT NULL,
    prompt_template  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chapters (
    id                    TEXT PRIMARY KEY,
    book_id               TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    chapter_number        INTEGER NOT NULL,
    title                 TEXT NOT NULL,
    untranslated_content  TEXT NOT NULL,
    translated_content    TEXT NOT NULL,
    summary               TEXT NOT NULL DEFAULT '',
    translation_date      TIMESTAMPTZ NOT NULL,
    translation_model     TEXT NOT NULL DEFAULT '',
    UNIQUE (book_id, chapter_number)
);
CREATE INDEX IF NOT EXISTS idx_chapters_book_id ON chapters(book_id);
`

// DB is the subset of *pgxpool.Pool / *pgx.Conn that Store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [bookstore.Store] backed by PostgreSQL.
type Store struct {
	db DB
}

var _ bookstore.Store = (*Store)(nil)

// New returns a [Store] backed by db. Call [Store.Migrate] once at startup.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes [Schema] against the database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("bookstore/postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) CreateBook(ctx context.Context, b bookstore.Book) (bookstore.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.ModifiedAt = now, now

	const insert = `
		INSERT INTO books (id, title, author, source_language, target_language, description, created_at, modified_at, prompt_template)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.db.Exec(ctx, insert,
		b.ID, b.Title, b.Author, b.SourceLanguage, b.TargetLanguage, b.Description, b.CreatedAt, b.ModifiedAt, b.PromptTemplate,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return bookstore.Book{}, bookstore.ErrTitleExists
		}
		return bookstore.Book{}, fmt.Errorf("bookstore/postgres: create book: %w", err)
	}
	return b, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (bookstore.Book, error) {
	const query = `
		SELECT id, title, author, source_language, target_language, description, created_at, modified_at, prompt_template
		FROM books WHERE id = $1`
	return scanBook(s.db.QueryRow(ctx, query, id))
}

func (s *Store) GetBookByTitle(ctx context.Context, title string) (bookstore.Book, error) {
	const query = `
		SELECT id, title, author, source_language, target_language, description, created_at, modified_at, prompt_template
		FROM books WHERE title = $1`
	return scanBook(s.db.QueryRow(ctx, query, title))
}

func (s *Store) UpdateBook(ctx context.Context, id string, patch bookstore.BookPatch) (bookstore.Book, error) {
	current, err := s.GetBook(ctx, id)
	if err != nil {
		return bookstore.Book{}, err
	}

	if patch.Title != nil {
		current.Title = *patch.Title
	}
	if patch.Author != nil {
		current.Author = *patch.Author
	}
	if patch.SourceLanguage != nil {
		current.SourceLanguage = *patch.SourceLanguage
	}
	if patch.TargetLanguage != nil {
		current.TargetLanguage = *patch.TargetLanguage
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	current.ModifiedAt = time.Now().UTC()

	const update = `
		UPDATE books SET title = $2, author = $3, source_language = $4, target_language = $5, description = $6, modified_at = $7
		WHERE id = $1`
	_, err = s.db.Exec(ctx, update,
		current.ID, current.Title, current.Author, current.SourceLanguage, current.TargetLanguage, current.Description, current.ModifiedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return bookstore.Book{}, bookstore.ErrTitleExists
		}
		return bookstore.Book{}, fmt.Errorf("bookstore/postgres: update book: %w", err)
	}
	return current, nil
}

func (s *Store) ListBooks(ctx context.Context) ([]bookstore.Book, error) {
	const query = `
		SELECT id, title, author, source_language, target_language, description, created_at, modified_at, prompt_template
		FROM books ORDER BY title`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("bookstore/postgres: list books: %w", err)
	}
	defer rows.Close()

	var out []bookstore.Book
	for rows.Next() {
		b, err := scanBookRows(rows)
		if err != nil {
			return nil, fmt.Errorf("bookstore/postgres: list books: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) DeleteBook(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("bookstore/postgres: delete book: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) PromptTemplate(ctx context.Context, bookID string) (string, error) {
	b, err := s.GetBook(ctx, bookID)
	if err != nil {
		return "", err
	}
	return b.PromptTemplate, nil
}

func (s *Store) SetPromptTemplate(ctx context.Context, bookID string, template string) error {
	if err := bookstore.ValidatePromptTemplate(template); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE books SET prompt_template = $2, modified_at = $3 WHERE id = $1`,
		bookID, template, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bookstore/postgres: set prompt template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bookstore.ErrNotFound
	}
	return nil
}

func (s *Store) SaveChapter(ctx context.Context, c bookstore.Chapter) (bookstore.Chapter, error) {
	if _, err := s.GetBook(ctx, c.BookID); err != nil {
		return bookstore.Chapter{}, fmt.Errorf("bookstore/postgres: save chapter: %w", err)
	}

	untranslatedJSON, err := json.Marshal(c.UntranslatedContent)
	if err != nil {
		return bookstore.Chapter{}, fmt.Errorf("bookstore/postgres: save chapter: marshal untranslated: %w", err)
	}
	translatedJSON, err := json.Marshal(c.TranslatedContent)
	if err != nil {
		return bookstore.Chapter{}, fmt.Errorf("bookstore/postgres: save chapter: marshal translated: %w", err)
	}

	existing, err := s.GetChapter(ctx, c.BookID, c.ChapterNumber)
	switch {
	case errors.Is(err, bookstore.ErrNotFound):
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
	case err != nil:
		return bookstore.Chapter{}, fmt.Errorf("bookstore/postgres: save chapter: %w", err)
	default:
		c.ID = existing.ID
	}
	c.TranslationDate = time.Now().UTC()

	const upsert = `
		INSERT INTO chapters (id, book_id, chapter_number, title, untranslated_content, translated_content, summary, translation_date, translation_model)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (book_id, chapter_number) DO UPDATE SET
			title = EXCLUDED.title,
			untranslated_content = EXCLUDED.untranslated_content,
			translated_content = EXCLUDED.translated_content,
			summary = EXCLUDED.summary,
			translation_date = EXCLUDED.translation_date,
			translation_model = EXCLUDED.translation_model`
	_, err = s.db.Exec(ctx, upsert,
		c.ID, c.BookID, c.ChapterNumber, c.Title, string(untranslatedJSON), string(translatedJSON), c.Summary, c.TranslationDate, c.TranslationModel,
	)
	if err != nil {
		return bookstore.Chapter{}, fmt.Errorf("bookstore/postgres: save chapter: %w", err)
	}

	if _, err := s.db.Exec(ctx, `UPDATE books SET modified_at = $2 WHERE id = $1`, c.BookID, c.TranslationDate); err != nil {
		return bookstore.Chapter{}, fmt.Errorf("bookstore/postgres: save chapter: bump book: %w", err)
	}
	return c, nil
}

func (s *Store) GetChapter(ctx context.Context, bookID string, chapterNumber int) (bookstore.Chapter, error) {
	const query = `
		SELECT id, book_id, chapter_number, title, untranslated_content, translated_content, summary, translation_date, translation_model
		FROM chapters WHERE book_id = $1 AND chapter_number = $2`
	return scanChapter(s.db.QueryRow(ctx, query, bookID, chapterNumber))
}

func (s *Store) ListChapters(ctx context.Context, bookID string) ([]bookstore.ChapterSummary, error) {
	const query = `
		SELECT id, chapter_number, title, translation_date, translation_model
		FROM chapters WHERE book_id = $1 ORDER BY chapter_number`
	rows, err := s.db.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("bookstore/postgres: list chapters: %w", err)
	}
	defer rows.Close()

	var out []bookstore.ChapterSummary
	for rows.Next() {
		var cs bookstore.ChapterSummary
		if err := rows.Scan(&cs.ID, &cs.ChapterNumber, &cs.Title, &cs.TranslationDate, &cs.TranslationModel); err != nil {
			return nil, fmt.Errorf("bookstore/postgres: list chapters: scan: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *Store) DeleteChapter(ctx context.Context, bookID string, chapterNumber int) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chapters WHERE book_id = $1 AND chapter_number = $2`, bookID, chapterNumber)
	if err != nil {
		return false, fmt.Errorf("bookstore/postgres: delete chapter: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (bookstore.Book, error) {
	b, err := scanBookInto(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return bookstore.Book{}, bookstore.ErrNotFound
	}
	if err != nil {
		return bookstore.Book{}, fmt.Errorf("bookstore/postgres: scan book: %w", err)
	}
	return b, nil
}

func scanBookRows(rows pgx.Rows) (bookstore.Book, error) {
	return scanBookInto(rows)
}

func scanBookInto(row rowScanner) (bookstore.Book, error) {
	var b bookstore.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.SourceLanguage, &b.TargetLanguage, &b.Description, &b.CreatedAt, &b.ModifiedAt, &b.PromptTemplate)
	return b, err
}

func scanChapter(row rowScanner) (bookstore.Chapter, error) {
	var c bookstore.Chapter
	var untranslatedJSON, translatedJSON string
	err := row.Scan(&c.ID, &c.BookID, &c.ChapterNumber, &c.Title, &untranslatedJSON, &translatedJSON, &c.Summary, &c.TranslationDate, &c.TranslationModel)
	if errors.Is(err, pgx.ErrNoRows) {
		return bookstore.Chapter{}, bookstore.ErrNotFound
	}
	if err != nil {
		return bookstore.Chapter{}, fmt.Errorf("bookstore/postgres: scan chapter: %w", err)
	}
	c.UntranslatedContent = decodeLines(untranslatedJSON)
	c.TranslatedContent = decodeLines(translatedJSON)
	return c, nil
}

// decodeLines deserializes a line sequence written by [json.Marshal]. If
// the stored payload is not well-formed JSON — e.g. content written by an
// older version of this system, or imported from the legacy tool — it is
// recovered by splitting on the line terminator (§4.3).
func decodeLines(payload string) []string {
	var lines []string
	if err := json.Unmarshal([]byte(payload), &lines); err == nil {
		return lines
	}
	return strings.Split(payload, "\n")
}

// isDuplicateKeyError checks whether err is a PostgreSQL unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Package postgres implements glossary.Store on top of PostgreSQL,
// following the same DB-interface pattern the teacher uses for its own
// pgx-backed stores. Entities live in plain columns, and writes upsert
// with ON CONFLICT rather than detecting duplicate-key errors.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arcveil/inkbridge/internal/glossary"
)

// Schema is the SQL DDL for the entities table and its indices (§6.2).
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    category              TEXT NOT NULL,
    untranslated           TEXT NOT NULL,
    book_id                TEXT NOT NULL DEFAULT '',
    translation            TEXT NOT NULL,
    last_chapter           INTEGER NOT NULL DEFAULT 0,
    incorrect_translation  TEXT NOT NULL DEFAULT '',
    gender                 TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (category, untranslated, book_id)
);
CREATE INDEX IF NOT EXISTS idx_entities_category ON entities(category);
CREATE INDEX IF NOT EXISTS idx_entities_untranslated ON entities(untranslated);
CREATE INDEX IF NOT EXISTS idx_entities_book_id ON entities(book_id);
CREATE INDEX IF NOT EXISTS idx_entities_translation ON entities(translation);
`

// DB is the subset of *pgxpool.Pool / *pgx.Conn that Store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [glossary.Store] backed by PostgreSQL, enforcing I1 via the
// composite primary key and I2 in application code (Postgres has no native
// "unique except this one column" constraint, so cross-category collision
// is checked with a SELECT before INSERT, same as the teacher's
// application-level validation calls).
type Store struct {
	db DB
}

var _ glossary.Store = (*Store)(nil)

// New returns a [Store] backed by db. Call [Store.Migrate] once at startup.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes [Schema] against the database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("glossary/postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, e glossary.Entity) error {
	const conflictQuery = `SELECT category FROM entities WHERE untranslated = $1 AND book_id = $2 AND category <> $3 LIMIT 1`
	var existing string
	err := s.db.QueryRow(ctx, conflictQuery, e.Untranslated, e.BookID, string(e.Category)).Scan(&existing)
	if err == nil {
		return &glossary.ErrConflictCategory{Existing: glossary.Category(existing)}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("glossary/postgres: add: check conflict: %w", err)
	}

	// Same (category, untranslated, book_id) re-added: upsert rather than
	// fail, matching [glossary.MemStore.Add]'s plain map-assignment
	// overwrite for an exact-key re-add.
	const insert = `
		INSERT INTO entities (category, untranslated, book_id, translation, last_chapter, incorrect_translation, gender)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (category, untranslated, book_id) DO UPDATE SET
			translation = EXCLUDED.translation,
			last_chapter = EXCLUDED.last_chapter,
			incorrect_translation = EXCLUDED.incorrect_translation,
			gender = EXCLUDED.gender`
	_, err = s.db.Exec(ctx, insert,
		string(e.Category), e.Untranslated, e.BookID, e.Translation, e.LastChapter,
		e.IncorrectTranslation, string(e.Gender),
	)
	if err != nil {
		return fmt.Errorf("glossary/postgres: add: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key glossary.EntityKey) (glossary.Entity, error) {
	const query = `
		SELECT category, untranslated, book_id, translation, last_chapter, incorrect_translation, gender
		FROM entities WHERE category = $1 AND untranslated = $2 AND book_id = $3`
	e, err := scanEntity(s.db.QueryRow(ctx, query, string(key.Category), key.Untranslated, key.BookID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return glossary.Entity{}, glossary.ErrNotFound
		}
		return glossary.Entity{}, fmt.Errorf("glossary/postgres: get: %w", err)
	}
	return e, nil
}

func (s *Store) Update(ctx context.Context, key glossary.EntityKey, fields glossary.UpdateFields) error {
	current, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	onlyBookIDChanged := fields.BookID != nil && fields.Translation == nil &&
		fields.LastChapter == nil && fields.IncorrectTranslation == nil && fields.Gender == nil

	if fields.Translation != nil {
		current.Translation = *fields.Translation
	}
	if fields.LastChapter != nil {
		current.LastChapter = *fields.LastChapter
	}
	if fields.IncorrectTranslation != nil {
		current.IncorrectTranslation = *fields.IncorrectTranslation
	}
	if fields.Gender != nil {
		current.Gender = *fields.Gender
	}

	if onlyBookIDChanged {
		newBookID := *fields.BookID
		const del = `DELETE FROM entities WHERE category = $1 AND untranslated = $2 AND book_id = $3`
		if _, err := s.db.Exec(ctx, del, string(key.Category), key.Untranslated, key.BookID); err != nil {
			return fmt.Errorf("glossary/postgres: update: move scope: %w", err)
		}
		current.BookID = newBookID
		return s.Add(ctx, current)
	}

	const update = `
		UPDATE entities SET translation = $4, last_chapter = $5, incorrect_translation = $6, gender = $7
		WHERE category = $1 AND untranslated = $2 AND book_id = $3`
	tag, err := s.db.Exec(ctx, update,
		string(key.Category), key.Untranslated, key.BookID,
		current.Translation, current.LastChapter, current.IncorrectTranslation, string(current.Gender),
	)
	if err != nil {
		return fmt.Errorf("glossary/postgres: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return glossary.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key glossary.EntityKey) (bool, error) {
	const query = `DELETE FROM entities WHERE category = $1 AND untranslated = $2 AND book_id = $3`
	tag, err := s.db.Exec(ctx, query, string(key.Category), key.Untranslated, key.BookID)
	if err != nil {
		return false, fmt.Errorf("glossary/postgres: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MoveCategory(ctx context.Context, bookID, untranslated string, old, new glossary.Category) error {
	oldKey := glossary.EntityKey{Category: old, Untranslated: untranslated, BookID: bookID}
	e, err := s.Get(ctx, oldKey)
	if err != nil {
		return err
	}
	if _, err := s.Get(ctx, glossary.EntityKey{Category: new, Untranslated: untranslated, BookID: bookID}); err == nil {
		return glossary.ErrAlreadyInTarget
	}

	const del = `DELETE FROM entities WHERE category = $1 AND untranslated = $2 AND book_id = $3`
	if _, err := s.db.Exec(ctx, del, string(old), untranslated, bookID); err != nil {
		return fmt.Errorf("glossary/postgres: move category: %w", err)
	}
	e.Category = new
	return s.Add(ctx, e)
}

func (s *Store) GetByTranslation(ctx context.Context, bookID, translation string) (glossary.Entity, error) {
	const query = `
		SELECT category, untranslated, book_id, translation, last_chapter, incorrect_translation, gender
		FROM entities WHERE translation = $1 AND (book_id = $2 OR book_id = '') LIMIT 1`
	e, err := scanEntity(s.db.QueryRow(ctx, query, translation, bookID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return glossary.Entity{}, glossary.ErrNotFound
		}
		return glossary.Entity{}, fmt.Errorf("glossary/postgres: get by translation: %w", err)
	}
	return e, nil
}

func (s *Store) SimilarTranslations(ctx context.Context, bookID, prefix string, limit int) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	first := string([]rune(prefix)[:1])
	const query = `
		SELECT DISTINCT translation FROM entities
		WHERE (book_id = $1 OR book_id = '') AND translation LIKE $2
		ORDER BY translation LIMIT $3`
	rows, err := s.db.Query(ctx, query, bookID, first+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("glossary/postgres: similar translations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("glossary/postgres: similar translations: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ForBook(ctx context.Context, bookID string) ([]glossary.Entity, error) {
	const query = `
		SELECT category, untranslated, book_id, translation, last_chapter, incorrect_translation, gender
		FROM entities WHERE book_id = $1 OR book_id = ''`
	rows, err := s.db.Query(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("glossary/postgres: for book: %w", err)
	}
	defer rows.Close()

	merged := make(map[[2]string]glossary.Entity)
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, fmt.Errorf("glossary/postgres: for book: scan: %w", err)
		}
		composite := [2]string{string(e.Category), e.Untranslated}
		if existing, ok := merged[composite]; ok && existing.BookID == bookID && e.BookID == "" {
			continue
		}
		merged[composite] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("glossary/postgres: for book: %w", err)
	}

	out := make([]glossary.Entity, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) DuplicateCategoryAudit(ctx context.Context) ([]glossary.PotentialDuplicate, error) {
	const query = `
		SELECT a.untranslated, a.translation, a.category, b.category, b.translation
		FROM entities a
		JOIN entities b ON a.untranslated = b.untranslated AND a.book_id = b.book_id AND a.category > b.category`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("glossary/postgres: duplicate category audit: %w", err)
	}
	defer rows.Close()

	var dups []glossary.PotentialDuplicate
	for rows.Next() {
		var d glossary.PotentialDuplicate
		var newCat, existingCat string
		if err := rows.Scan(&d.Untranslated, &d.Translation, &newCat, &existingCat, &d.ExistingTranslation); err != nil {
			return nil, fmt.Errorf("glossary/postgres: duplicate category audit: scan: %w", err)
		}
		d.NewCategory = glossary.Category(newCat)
		d.ExistingCategory = glossary.Category(existingCat)
		dups = append(dups, d)
	}
	return dups, rows.Err()
}

func (s *Store) DuplicateTranslationAudit(ctx context.Context) ([]glossary.TranslationGroup, error) {
	const query = `
		SELECT book_id, translation, category, untranslated FROM entities
		WHERE translation <> '' AND (book_id, translation) IN (
			SELECT book_id, translation FROM entities WHERE translation <> ''
			GROUP BY book_id, translation HAVING COUNT(*) > 1
		)
		ORDER BY book_id, translation`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("glossary/postgres: duplicate translation audit: %w", err)
	}
	defer rows.Close()

	byGroup := make(map[[2]string]*glossary.TranslationGroup)
	var order [][2]string
	for rows.Next() {
		var bookID, translation, category, untranslated string
		if err := rows.Scan(&bookID, &translation, &category, &untranslated); err != nil {
			return nil, fmt.Errorf("glossary/postgres: duplicate translation audit: scan: %w", err)
		}
		gk := [2]string{bookID, translation}
		g, ok := byGroup[gk]
		if !ok {
			g = &glossary.TranslationGroup{BookID: bookID, Translation: translation}
			byGroup[gk] = g
			order = append(order, gk)
		}
		g.Entities = append(g.Entities, glossary.EntityKey{
			Category: glossary.Category(category), Untranslated: untranslated, BookID: bookID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("glossary/postgres: duplicate translation audit: %w", err)
	}

	groups := make([]glossary.TranslationGroup, 0, len(order))
	for _, gk := range order {
		groups = append(groups, *byGroup[gk])
	}
	return groups, nil
}

func (s *Store) BulkUpsert(ctx context.Context, entities []glossary.Entity) (int, error) {
	const upsert = `
		INSERT INTO entities (category, untranslated, book_id, translation, last_chapter, incorrect_translation, gender)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (category, untranslated, book_id) DO UPDATE SET
			translation = EXCLUDED.translation,
			last_chapter = EXCLUDED.last_chapter,
			incorrect_translation = EXCLUDED.incorrect_translation,
			gender = EXCLUDED.gender`
	n := 0
	for _, e := range entities {
		_, err := s.db.Exec(ctx, upsert,
			string(e.Category), e.Untranslated, e.BookID, e.Translation, e.LastChapter,
			e.IncorrectTranslation, string(e.Gender),
		)
		if err != nil {
			return n, fmt.Errorf("glossary/postgres: bulk upsert at index %d: %w", n, err)
		}
		n++
	}
	return n, nil
}

func (s *Store) All(ctx context.Context) ([]glossary.Entity, error) {
	const query = `
		SELECT category, untranslated, book_id, translation, last_chapter, incorrect_translation, gender
		FROM entities ORDER BY category, untranslated, book_id`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("glossary/postgres: all: %w", err)
	}
	defer rows.Close()

	var out []glossary.Entity
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, fmt.Errorf("glossary/postgres: all: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (glossary.Entity, error) {
	var e glossary.Entity
	var category, gender string
	err := row.Scan(&category, &e.Untranslated, &e.BookID, &e.Translation, &e.LastChapter, &e.IncorrectTranslation, &gender)
	e.Category = glossary.Category(category)
	e.Gender = glossary.Gender(gender)
	return e, err
}

func scanEntityRows(rows pgx.Rows) (glossary.Entity, error) {
	return scanEntity(rows)
}


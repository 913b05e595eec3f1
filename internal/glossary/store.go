package glossary

import (
	"context"
	"errors"
)

// ErrNotFound is returned by operations that address a specific entity by
// key when no such row exists.
var ErrNotFound = errors.New("glossary: entity not found")

// ErrConflictCategory is returned by [Store.Add] when untranslated already
// exists under a different category within the same book scope (I2).
type ErrConflictCategory struct {
	Existing Category
}

func (e *ErrConflictCategory) Error() string {
	return "glossary: untranslated already exists under category " + string(e.Existing)
}

// ErrAlreadyInTarget is returned by [Store.MoveCategory] when the entity is
// already filed under the requested target category.
var ErrAlreadyInTarget = errors.New("glossary: entity already in target category")

// UpdateFields carries the partial-update payload for [Store.Update].
// Only non-nil fields are applied. If BookID is the only non-nil field,
// the row's scope moves (book-scoped <-> global); otherwise the Category/
// Untranslated pair addressed by the call is a selector, not a change.
type UpdateFields struct {
	Translation          *string
	LastChapter          *int
	IncorrectTranslation *string
	Gender               *Gender
	BookID               *string
}

// Store is the persistent glossary backing C2. Implementations must
// enforce I1 (uniqueness) and I2 (cross-category uniqueness per book
// scope) and must be safe for concurrent use — exactly one writer drives
// the store per §5, but reads may happen concurrently with the prompt
// composer.
type Store interface {
	// Add creates a new entity. Returns [*ErrConflictCategory] if
	// untranslated already exists under a different category in the same
	// book scope (I2).
	Add(ctx context.Context, e Entity) error

	// Get retrieves a single entity by its uniqueness tuple.
	// Returns [ErrNotFound] if no such row exists.
	Get(ctx context.Context, key EntityKey) (Entity, error)

	// Update applies a partial update to the entity addressed by key.
	// Returns [ErrNotFound] if no such row exists.
	Update(ctx context.Context, key EntityKey, fields UpdateFields) error

	// Delete removes the entity addressed by key. Idempotent: returns
	// whether a row was actually removed, never an error for "not found".
	Delete(ctx context.Context, key EntityKey) (removed bool, err error)

	// MoveCategory re-files untranslated from old to new within the same
	// book scope. Returns [ErrNotFound] or [ErrAlreadyInTarget].
	MoveCategory(ctx context.Context, bookID string, untranslated string, old, new Category) error

	// GetByTranslation finds an entity whose Translation matches exactly,
	// scoped to bookID (empty string also searches the global scope).
	// Used by reconciliation's collision detection (I3). Returns
	// [ErrNotFound] if no row matches.
	GetByTranslation(ctx context.Context, bookID, translation string) (Entity, error)

	// SimilarTranslations returns up to limit distinct translations of
	// entities in the given book scope (plus global) whose first rune
	// matches prefix's first rune — the same "first character" heuristic
	// original_source/translation_engine.py's get_translation_options uses
	// to find visually similar existing translations for the advice
	// prompt (§4.7 supplemental).
	SimilarTranslations(ctx context.Context, bookID, prefix string, limit int) ([]string, error)

	// ForBook returns every entity visible to bookID: all global entities
	// plus every entity scoped to bookID, with book-scoped entries winning
	// over global ones sharing the same (category, untranslated) per §9's
	// "global or book-scoped lookup" design note.
	ForBook(ctx context.Context, bookID string) ([]Entity, error)

	// DuplicateCategoryAudit reports, as [PotentialDuplicate] records, the
	// untranslated terms filed under more than one category within the
	// same book scope — used by the database-wide audit (§4.7) to find I2
	// violations that predate the invariant.
	DuplicateCategoryAudit(ctx context.Context) ([]PotentialDuplicate, error)

	// DuplicateTranslationAudit finds every translation shared by more
	// than one (category, untranslated) pair within the same book scope
	// (I3 warnings), grouped by book.
	DuplicateTranslationAudit(ctx context.Context) ([]TranslationGroup, error)

	// BulkUpsert inserts or updates entities keyed by their uniqueness
	// tuple (upsert semantics), used by [ImportJSON]. Returns the number
	// of rows written.
	BulkUpsert(ctx context.Context, entities []Entity) (int, error)

	// All returns every entity in the store, used by [ExportJSON].
	All(ctx context.Context) ([]Entity, error)
}

// TranslationGroup is one I3-violation group: the same translation shared
// by multiple distinct untranslated terms within a book scope.
type TranslationGroup struct {
	BookID      string
	Translation string
	Entities    []EntityKey
}

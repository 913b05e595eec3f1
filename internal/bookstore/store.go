package bookstore

import "context"

// Store is the persistent Book/Chapter backing C3. Deleting a book cascades
// to its chapters (§3's lifecycle rule).
type Store interface {
	// CreateBook inserts a new book. Returns [ErrTitleExists] if the title
	// is already taken.
	CreateBook(ctx context.Context, b Book) (Book, error)

	// GetBook retrieves a book by ID. Returns [ErrNotFound] if absent.
	GetBook(ctx context.Context, id string) (Book, error)

	// GetBookByTitle retrieves a book by its unique title. Returns
	// [ErrNotFound] if absent.
	GetBookByTitle(ctx context.Context, title string) (Book, error)

	// UpdateBook applies a partial update, addressed by id. Only non-nil
	// fields in patch are applied; ModifiedAt is always refreshed to the
	// current time. Returns [ErrNotFound] if absent.
	UpdateBook(ctx context.Context, id string, patch BookPatch) (Book, error)

	// ListBooks returns every book, ordered by title.
	ListBooks(ctx context.Context) ([]Book, error)

	// DeleteBook removes a book and, per §3's cascade rule, every chapter
	// scoped to it. Idempotent: reports whether a row was removed.
	DeleteBook(ctx context.Context, id string) (removed bool, err error)

	// PromptTemplate returns the book's custom template, or "" if unset —
	// callers fall back to the default template (§4.3).
	PromptTemplate(ctx context.Context, bookID string) (string, error)

	// SetPromptTemplate writes a custom template for bookID. Returns
	// [*ErrInvalidTemplate] if template is non-empty and missing
	// [EntitiesPlaceholder].
	SetPromptTemplate(ctx context.Context, bookID string, template string) error

	// SaveChapter is an upsert on (BookID, ChapterNumber): inserts if new,
	// overwrites if it already exists, and in both cases bumps the
	// parent book's ModifiedAt (§4.3).
	SaveChapter(ctx context.Context, c Chapter) (Chapter, error)

	// GetChapter retrieves one chapter by (bookID, chapterNumber). Returns
	// [ErrNotFound] if absent.
	GetChapter(ctx context.Context, bookID string, chapterNumber int) (Chapter, error)

	// ListChapters returns every chapter of bookID, ordered by
	// ChapterNumber, as lightweight summaries (no content).
	ListChapters(ctx context.Context, bookID string) ([]ChapterSummary, error)

	// DeleteChapter removes one chapter. Idempotent: reports whether a row
	// was removed.
	DeleteChapter(ctx context.Context, bookID string, chapterNumber int) (removed bool, err error)
}

// BookPatch carries the partial-update payload for [Store.UpdateBook]. A
// nil field is left unchanged.
type BookPatch struct {
	Title          *string
	Author         *string
	SourceLanguage *string
	TargetLanguage *string
	Description    *string
}

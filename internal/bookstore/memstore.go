package bookstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time assertion that MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. It backs unit tests for the
// application layer without requiring a PostgreSQL connection, mirroring
// [github.com/arcveil/inkbridge/internal/glossary.MemStore]'s role for the
// entity store.
type MemStore struct {
	mu       sync.Mutex
	books    map[string]Book
	chapters map[string]map[int]Chapter
}

// NewMemStore returns an initialised, empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		books:    make(map[string]Book),
		chapters: make(map[string]map[int]Chapter),
	}
}

func (s *MemStore) CreateBook(ctx context.Context, b Book) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.books {
		if existing.Title == b.Title {
			return Book{}, ErrTitleExists
		}
	}

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.ModifiedAt = now, now
	s.books[b.ID] = b
	return b, nil
}

func (s *MemStore) GetBook(ctx context.Context, id string) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (s *MemStore) GetBookByTitle(ctx context.Context, title string) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.books {
		if b.Title == title {
			return b, nil
		}
	}
	return Book{}, ErrNotFound
}

func (s *MemStore) UpdateBook(ctx context.Context, id string, patch BookPatch) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}

	newTitle := b.Title
	if patch.Title != nil {
		newTitle = *patch.Title
	}
	if newTitle != b.Title {
		for otherID, other := range s.books {
			if otherID != id && other.Title == newTitle {
				return Book{}, ErrTitleExists
			}
		}
	}

	b.Title = newTitle
	if patch.Author != nil {
		b.Author = *patch.Author
	}
	if patch.SourceLanguage != nil {
		b.SourceLanguage = *patch.SourceLanguage
	}
	if patch.TargetLanguage != nil {
		b.TargetLanguage = *patch.TargetLanguage
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	b.ModifiedAt = time.Now().UTC()
	s.books[id] = b
	return b, nil
}

func (s *MemStore) ListBooks(ctx context.Context) ([]Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *MemStore) DeleteBook(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return false, nil
	}
	delete(s.books, id)
	delete(s.chapters, id)
	return true, nil
}

func (s *MemStore) PromptTemplate(ctx context.Context, bookID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[bookID]
	if !ok {
		return "", ErrNotFound
	}
	return b.PromptTemplate, nil
}

func (s *MemStore) SetPromptTemplate(ctx context.Context, bookID string, template string) error {
	if err := ValidatePromptTemplate(template); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[bookID]
	if !ok {
		return ErrNotFound
	}
	b.PromptTemplate = template
	b.ModifiedAt = time.Now().UTC()
	s.books[bookID] = b
	return nil
}

func (s *MemStore) SaveChapter(ctx context.Context, c Chapter) (Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[c.BookID]
	if !ok {
		return Chapter{}, ErrNotFound
	}

	byChapter, ok := s.chapters[c.BookID]
	if !ok {
		byChapter = make(map[int]Chapter)
		s.chapters[c.BookID] = byChapter
	}
	if existing, ok := byChapter[c.ChapterNumber]; ok {
		c.ID = existing.ID
	} else if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.TranslationDate = time.Now().UTC()
	byChapter[c.ChapterNumber] = c

	b.ModifiedAt = c.TranslationDate
	s.books[c.BookID] = b
	return c, nil
}

func (s *MemStore) GetChapter(ctx context.Context, bookID string, chapterNumber int) (Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChapter, ok := s.chapters[bookID]
	if !ok {
		return Chapter{}, ErrNotFound
	}
	c, ok := byChapter[chapterNumber]
	if !ok {
		return Chapter{}, ErrNotFound
	}
	return c, nil
}

func (s *MemStore) ListChapters(ctx context.Context, bookID string) ([]ChapterSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChapter := s.chapters[bookID]
	out := make([]ChapterSummary, 0, len(byChapter))
	for _, c := range byChapter {
		out = append(out, ChapterSummary{
			ID:               c.ID,
			ChapterNumber:    c.ChapterNumber,
			Title:            c.Title,
			TranslationDate:  c.TranslationDate,
			TranslationModel: c.TranslationModel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterNumber < out[j].ChapterNumber })
	return out, nil
}

func (s *MemStore) DeleteChapter(ctx context.Context, bookID string, chapterNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChapter, ok := s.chapters[bookID]
	if !ok {
		return false, nil
	}
	if _, ok := byChapter[chapterNumber]; !ok {
		return false, nil
	}
	delete(byChapter, chapterNumber)
	return true, nil
}

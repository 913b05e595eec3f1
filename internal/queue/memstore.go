package queue

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
// background queue worker and the application layer without requiring a
// PostgreSQL connection.
type MemStore struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewMemStore returns an initialised, empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]Item)}
}

func (s *MemStore) Enqueue(ctx context.Context, item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxPos := -1
	for _, it := range s.items {
		if it.Position > maxPos {
			maxPos = it.Position
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Position = maxPos + 1
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *MemStore) Dequeue(ctx context.Context, bookID string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Item
	for id := range s.items {
		it := s.items[id]
		if bookID != "" && it.BookID != bookID {
			continue
		}
		if best == nil || it.Position < best.Position {
			cp := it
			best = &cp
		}
	}
	if best == nil {
		return Item{}, ErrEmpty
	}
	return *best, nil
}

func (s *MemStore) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, ok := s.items[id]
	if !ok {
		return false, nil
	}
	delete(s.items, id)

	for otherID, it := range s.items {
		if it.Position > removed.Position {
			it.Position--
			s.items[otherID] = it
		}
	}
	return true, nil
}

func (s *MemStore) List(ctx context.Context, bookID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Item
	for _, it := range s.items {
		if bookID != "" && it.BookID != bookID {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemStore) Clear(ctx context.Context, bookID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, it := range s.items {
		if bookID != "" && it.BookID != bookID {
			continue
		}
		delete(s.items, id)
		removed++
	}

	remaining := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		remaining = append(remaining, it)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Position < remaining[j].Position })
	for i, it := range remaining {
		it.Position = i
		s.items[it.ID] = it
	}
	return removed, nil
}

func (s *MemStore) Count(ctx context.Context, bookID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bookID == "" {
		return len(s.items), nil
	}
	n := 0
	for _, it := range s.items {
		if it.BookID == bookID {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) HasDuplicate(ctx context.Context, bookID string, chapterNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.BookID == bookID && it.ChapterNumber == chapterNumber {
			return true, nil
		}
	}
	return false, nil
}

package queue

import (
	"context"
	"errors"
	"testing"
)

// TestMemStore_S4_FIFOCompaction is the literal S4 scenario: enqueue
// ["a","b","c","d"], remove position 1 ("b"), expect positions 0,1,2 with
// titles ["a","c","d"].
func TestMemStore_S4_FIFOCompaction(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	ids := make(map[string]string, 4)
	for _, title := range []string{"a", "b", "c", "d"} {
		item, err := s.Enqueue(ctx, Item{BookID: "book-1", Title: title})
		if err != nil {
			t.Fatalf("Enqueue(%q) unexpected error: %v", title, err)
		}
		ids[title] = item.ID
	}

	removed, err := s.Remove(ctx, ids["b"])
	if err != nil {
		t.Fatalf("Remove() unexpected error: %v", err)
	}
	if !removed {
		t.Fatal("Remove() reported no removal")
	}

	items, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("List() len = %d, want 3", len(items))
	}
	wantTitles := []string{"a", "c", "d"}
	for i, item := range items {
		if item.Position != i {
			t.Errorf("items[%d].Position = %d, want %d", i, item.Position, i)
		}
		if item.Title != wantTitles[i] {
			t.Errorf("items[%d].Title = %q, want %q", i, item.Title, wantTitles[i])
		}
	}
}

// TestMemStore_P5_FIFOOrder enqueues k items then dequeues+removes k times,
// verifying items exit in the exact order they entered.
func TestMemStore_P5_FIFOOrder(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	titles := []string{"first", "second", "third", "fourth", "fifth"}
	for _, title := range titles {
		if _, err := s.Enqueue(ctx, Item{BookID: "book-1", Title: title}); err != nil {
			t.Fatalf("Enqueue(%q) unexpected error: %v", title, err)
		}
	}

	for _, want := range titles {
		item, err := s.Dequeue(ctx, "")
		if err != nil {
			t.Fatalf("Dequeue() unexpected error: %v", err)
		}
		if item.Title != want {
			t.Errorf("Dequeue().Title = %q, want %q", item.Title, want)
		}
		if _, err := s.Remove(ctx, item.ID); err != nil {
			t.Fatalf("Remove() unexpected error: %v", err)
		}
	}

	if _, err := s.Dequeue(ctx, ""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Dequeue() on empty queue error = %v, want ErrEmpty", err)
	}
}

// TestMemStore_P4_ClearRecompacts verifies that after Clear(bookID) the
// remaining items (for a different book) are recompacted to {0, ..., m-1}.
func TestMemStore_P4_ClearRecompacts(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		if _, err := s.Enqueue(ctx, Item{BookID: "book-1", Title: title}); err != nil {
			t.Fatalf("Enqueue(%q) unexpected error: %v", title, err)
		}
	}
	for _, title := range []string{"x", "y", "z"} {
		if _, err := s.Enqueue(ctx, Item{BookID: "book-2", Title: title}); err != nil {
			t.Fatalf("Enqueue(%q) unexpected error: %v", title, err)
		}
	}

	n, err := s.Clear(ctx, "book-1")
	if err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear() removed = %d, want 2", n)
	}

	remaining, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("List() len = %d, want 3", len(remaining))
	}
	for i, item := range remaining {
		if item.Position != i {
			t.Errorf("remaining[%d].Position = %d, want %d", i, item.Position, i)
		}
		if item.BookID != "book-2" {
			t.Errorf("remaining[%d].BookID = %q, want book-2", i, item.BookID)
		}
	}
}

func TestMemStore_HasDuplicate(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, Item{BookID: "book-1", ChapterNumber: 5, Title: "ch5"}); err != nil {
		t.Fatalf("Enqueue() unexpected error: %v", err)
	}

	dup, err := s.HasDuplicate(ctx, "book-1", 5)
	if err != nil {
		t.Fatalf("HasDuplicate() unexpected error: %v", err)
	}
	if !dup {
		t.Error("HasDuplicate() = false, want true")
	}

	dup, err = s.HasDuplicate(ctx, "book-1", 6)
	if err != nil {
		t.Fatalf("HasDuplicate() unexpected error: %v", err)
	}
	if dup {
		t.Error("HasDuplicate() = true, want false for a different chapter")
	}
}

func TestMemStore_Dequeue_ScopedToBook(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, Item{BookID: "book-1", Title: "a"}); err != nil {
		t.Fatalf("Enqueue() unexpected error: %v", err)
	}
	if _, err := s.Enqueue(ctx, Item{BookID: "book-2", Title: "b"}); err != nil {
		t.Fatalf("Enqueue() unexpected error: %v", err)
	}

	item, err := s.Dequeue(ctx, "book-2")
	if err != nil {
		t.Fatalf("Dequeue() unexpected error: %v", err)
	}
	if item.Title != "b" {
		t.Errorf("Dequeue(book-2).Title = %q, want b", item.Title)
	}
}

package queue

import "context"

// Store is the persistent backing of C4. Exactly one worker drives the
// queue per §5; implementations must serialize Enqueue/Remove/Clear so
// position stays contiguous and 0-based.
type Store interface {
	// Enqueue appends item to the end of the queue, assigning the next
	// position atomically (MAX(position)+1, or 0 if empty).
	Enqueue(ctx context.Context, item Item) (Item, error)

	// Dequeue returns the item with the lowest position without removing
	// it. If bookID is non-empty, only items for that book are
	// considered. Returns [ErrEmpty] if no matching item exists.
	Dequeue(ctx context.Context, bookID string) (Item, error)

	// Remove deletes the item addressed by id and decrements the position
	// of every item after it, preserving contiguous ordering.
	Remove(ctx context.Context, id string) (removed bool, err error)

	// List returns every item ordered by position. If bookID is
	// non-empty, only items for that book are returned.
	List(ctx context.Context, bookID string) ([]Item, error)

	// Clear deletes every item (or every item for bookID, if non-empty)
	// and recompacts remaining positions to contiguous 0-based order.
	// Returns the number of items removed.
	Clear(ctx context.Context, bookID string) (int, error)

	// Count returns the number of items in the queue, optionally filtered
	// to bookID.
	Count(ctx context.Context, bookID string) (int, error)

	// HasDuplicate reports whether bookID already has a queued item for
	// chapterNumber, supporting idempotent ingestion.
	HasDuplicate(ctx context.Context, bookID string, chapterNumber int) (bool, error)
}

package queue

import "errors"

// ErrNotFound is returned when an item addressed by ID does not exist.
var ErrNotFound = errors.New("queue: item not found")

// ErrEmpty is returned by [Store.Dequeue] when the queue has no items.
var ErrEmpty = errors.New("queue: empty")

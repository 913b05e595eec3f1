// Package queue implements the persistent FIFO translation job queue (C4,
// §4.4): items ordered by a contiguous 0-based position, with exactly one
// worker consuming it at a time.
package queue

import "time"

// Item is one queued translation job.
type Item struct {
	ID            string
	BookID        string
	ChapterNumber int
	Title         string
	Source        string
	Content       []string
	Metadata      map[string]string
	Position      int
	CreatedAt     time.Time
}

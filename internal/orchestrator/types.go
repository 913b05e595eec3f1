// Package orchestrator drives the chunked streaming translation of one
// chapter (C6, §4.6): splitting source text into provider-sized chunks,
// composing and refreshing the system prompt between chunks, parsing each
// chunk's JSON response, and merging the results under the reconciliation
// rules of §4.7 Pass A.
package orchestrator

import "github.com/arcveil/inkbridge/internal/glossary"

// ChunkState is the per-chunk state machine of §4.6: Pending -> Streaming
// -> Parsed -> Merged -> PromptRefreshed. A failure in Streaming or Parsed
// aborts the whole chapter; earlier chunks are not persisted.
type ChunkState string

const (
	ChunkPending        ChunkState = "pending"
	ChunkStreaming      ChunkState = "streaming"
	ChunkParsed         ChunkState = "parsed"
	ChunkMerged         ChunkState = "merged"
	ChunkPromptRefreshed ChunkState = "prompt_refreshed"
)

// MergedEntity is one entry of [MergedResult.Entities]: an entity observed
// during this chapter's translation, not yet written to the glossary store.
type MergedEntity struct {
	Translation          string
	Gender               glossary.Gender
	IncorrectTranslation string
	LastChapter           int
}

// MergedResult is the running accumulation of every chunk processed so far
// for one chapter (§4.6 step 3d).
type MergedResult struct {
	Title    string
	Chapter  int
	Summary  string
	Content  []string
	Entities map[glossary.Category]map[string]MergedEntity
}

func newMergedResult() *MergedResult {
	entities := make(map[glossary.Category]map[string]MergedEntity, len(glossary.Categories))
	for _, cat := range glossary.Categories {
		entities[cat] = make(map[string]MergedEntity)
	}
	return &MergedResult{Entities: entities}
}

// Result is the orchestrator's final output for one chapter (§4.6 step 5).
type Result struct {
	Merged              MergedResult
	NewEntities         map[glossary.Category]map[string]MergedEntity
	SnapshotBefore      []glossary.Entity
	CurrentChapter      int
	TotalCharCount      int
	PotentialDuplicates []glossary.PotentialDuplicate
}

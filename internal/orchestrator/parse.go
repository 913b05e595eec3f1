package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arcveil/inkbridge/internal/glossary"
)

// parsedEntity is the wire shape of one entity inside a chunk's raw JSON
// response (§6.1). LastChapter is deliberately not decoded: the model is
// instructed to emit the literal sentinel there, but the orchestrator
// never trusts it — the real chapter number always wins (P7, see
// mergeChunk).
type parsedEntity struct {
	Translation          string `json:"translation"`
	Gender               string `json:"gender"`
	IncorrectTranslation string `json:"incorrect_translation"`
}

// parsedChunk is the wire shape of one chunk's raw JSON response (§6.1).
type parsedChunk struct {
	Title    string                             `json:"title"`
	Chapter  int                                `json:"chapter"`
	Summary  string                             `json:"summary"`
	Content  []string                           `json:"content"`
	Entities map[string]map[string]parsedEntity `json:"entities"`
}

// parseChunkResponse parses raw as one chunk's accumulated JSON response
// (§4.6 step 3c). A parse failure is fatal for the chapter and is
// returned as [*MalformedJSON] carrying the raw payload.
func parseChunkResponse(chunkIndex int, raw string) (parsedChunk, error) {
	trimmed := stripCodeFence(raw)
	var chunk parsedChunk
	if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
		return parsedChunk{}, &MalformedJSON{ChunkIndex: chunkIndex, Raw: raw, Err: err}
	}
	return chunk, nil
}

// stripCodeFence removes a leading/trailing ```-fenced wrapper, matching
// the cleanup adapters without native JSON mode (Anthropic) already apply
// before returning content, and defending against any provider that still
// wraps JSON in prose despite requesting json_object mode.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// mergeChunk merges chunk into running under the Pass A reconciliation
// rules (§4.6's "chunk-merge semantics", §4.7 Pass A). currentChapter is
// the real chapter number — it always wins over whatever sentinel the
// model put in the response (P7's decision that the sentinel never
// survives past this point). Returns the potential duplicates detected
// while merging this chunk.
func mergeChunk(running *MergedResult, chunk parsedChunk, currentChapter int) []glossary.PotentialDuplicate {
	if running.Title == "" {
		running.Title = chunk.Title
	}
	if running.Chapter == 0 && chunk.Chapter != 0 {
		running.Chapter = chunk.Chapter
	}
	running.Content = append(running.Content, chunk.Content...)
	running.Summary = strings.TrimSpace(strings.TrimSpace(running.Summary) + " " + strings.TrimSpace(chunk.Summary))

	var duplicates []glossary.PotentialDuplicate
	for _, cat := range glossary.Categories {
		for key, data := range chunk.Entities[string(cat)] {
			if dup, skip := crossCategoryConflict(running, cat, key, data.Translation); skip {
				duplicates = append(duplicates, dup)
				continue
			}
			if dup, skip := translationConflict(running, cat, key, data.Translation); skip {
				duplicates = append(duplicates, dup)
				continue
			}

			existing, ok := running.Entities[cat][key]
			if !ok {
				running.Entities[cat][key] = MergedEntity{
					Translation:          data.Translation,
					Gender:                glossary.Gender(data.Gender),
					IncorrectTranslation:  data.IncorrectTranslation,
					LastChapter:           currentChapter,
				}
				continue
			}
			existing.LastChapter = currentChapter
			running.Entities[cat][key] = existing
		}
	}
	return duplicates
}

// crossCategoryConflict reports whether key already exists in a category
// other than cat, logging nothing itself (the caller logs) but returning
// the [glossary.PotentialDuplicate] describing the conflict. newTranslation
// is the translation the current chunk proposed for key under cat — it is
// carried on the duplicate record (not existing.Translation) so a later
// [EditManual]/[AllowDuplicate] resolution still has it, even though Pass A
// itself discards the proposed entry.
func crossCategoryConflict(running *MergedResult, cat glossary.Category, key, newTranslation string) (glossary.PotentialDuplicate, bool) {
	for _, other := range glossary.Categories {
		if other == cat {
			continue
		}
		if existing, ok := running.Entities[other][key]; ok {
			return glossary.PotentialDuplicate{
				Untranslated:        key,
				Translation:         newTranslation,
				NewCategory:         cat,
				ExistingCategory:    other,
				ExistingTranslation: existing.Translation,
			}, true
		}
	}
	return glossary.PotentialDuplicate{}, false
}

// translationConflict reports whether translation already exists under a
// different key anywhere in running.
func translationConflict(running *MergedResult, cat glossary.Category, key, translation string) (glossary.PotentialDuplicate, bool) {
	if translation == "" {
		return glossary.PotentialDuplicate{}, false
	}
	for _, other := range glossary.Categories {
		for otherKey, e := range running.Entities[other] {
			if otherKey == key && other == cat {
				continue
			}
			if e.Translation == translation {
				return glossary.PotentialDuplicate{
					Untranslated:        key,
					Translation:         translation,
					NewCategory:         cat,
					ExistingCategory:    other,
					ExistingTranslation: e.Translation,
				}, true
			}
		}
	}
	return glossary.PotentialDuplicate{}, false
}

// fmtDuplicateLog renders a duplicate for the Warn-level log line emitted
// when it is detected, mirroring combine_json_chunks' logger.warning calls.
func fmtDuplicateLog(d glossary.PotentialDuplicate) string {
	return fmt.Sprintf("entity %q: category %q conflicts with existing category %q (translation %q)",
		d.Untranslated, d.NewCategory, d.ExistingCategory, d.ExistingTranslation)
}

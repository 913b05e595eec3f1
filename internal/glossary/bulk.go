package glossary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// exportRecord is the on-disk shape for a single exported entity — a flat
// record rather than the nested category-keyed map the provider prompt
// uses, so that round-tripping (R1) is a straightforward slice of rows.
type exportRecord struct {
	Category             Category `json:"category"`
	Untranslated         string   `json:"untranslated"`
	Translation          string   `json:"translation"`
	LastChapter          int      `json:"last_chapter"`
	IncorrectTranslation string   `json:"incorrect_translation,omitempty"`
	Gender               Gender   `json:"gender,omitempty"`
	BookID               string   `json:"book_id,omitempty"`
}

// ExportJSON serializes every entity in store to path as a JSON array,
// implementing the bulk export_json operation (§4.2).
func ExportJSON(ctx context.Context, store Store, path string) error {
	entities, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("glossary: export: list entities: %w", err)
	}

	records := make([]exportRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, exportRecord{
			Category:             e.Category,
			Untranslated:         e.Untranslated,
			Translation:          e.Translation,
			LastChapter:          e.LastChapter,
			IncorrectTranslation: e.IncorrectTranslation,
			Gender:               e.Gender,
			BookID:               e.BookID,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("glossary: export: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("glossary: export: write %q: %w", path, err)
	}
	return nil
}

// ImportJSON reads a JSON array previously written by [ExportJSON] and
// upserts every record into store, keyed by the uniqueness tuple (R1).
// Returns the number of entities written.
func ImportJSON(ctx context.Context, store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("glossary: import: read %q: %w", path, err)
	}

	var records []exportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("glossary: import: unmarshal: %w", err)
	}

	entities := make([]Entity, 0, len(records))
	for _, r := range records {
		entities = append(entities, Entity{
			Category:             r.Category,
			Untranslated:         r.Untranslated,
			Translation:          r.Translation,
			LastChapter:          r.LastChapter,
			IncorrectTranslation: r.IncorrectTranslation,
			Gender:               r.Gender,
			BookID:               r.BookID,
		})
	}

	n, err := store.BulkUpsert(ctx, entities)
	if err != nil {
		return n, fmt.Errorf("glossary: import: bulk upsert: %w", err)
	}
	return n, nil
}

package orchestrator

import (
	"context"
	"fmt"

	"github.com/arcveil/inkbridge/internal/bookstore"
	"github.com/arcveil/inkbridge/internal/glossary"
)

// PersistEntities upserts every entity discovered in result.Merged into
// store, scoped to bookID. It is the boundary the design notes' decision
// on the "THIS CHAPTER" sentinel (§9) relies on: every [MergedEntity] in
// result.Merged already carries a real chapter number (set by
// [mergeChunk] from the caller-supplied current chapter, never the
// sentinel), so every row this call writes satisfies P7.
//
// Callers are expected to have already resolved [Result.PotentialDuplicates]
// via package reconcile before calling this — entries still present under
// two categories after resolution will both be written, bypassing I2, only
// if an explicit allow-duplicate decision produced that state.
func PersistEntities(ctx context.Context, store glossary.Store, bookID string, result *Result) (int, error) {
	entities := make([]glossary.Entity, 0)
	for _, cat := range glossary.Categories {
		for key, e := range result.Merged.Entities[cat] {
			entities = append(entities, glossary.Entity{
				Category:             cat,
				Untranslated:         key,
				Translation:          e.Translation,
				LastChapter:          e.LastChapter,
				IncorrectTranslation: e.IncorrectTranslation,
				Gender:               e.Gender,
				BookID:               bookID,
			})
		}
	}

	n, err := store.BulkUpsert(ctx, entities)
	if err != nil {
		return n, fmt.Errorf("orchestrator: persist entities: %w", err)
	}
	return n, nil
}

// PersistChapter writes the merged translation result as one chapter via
// bookStore, implementing the archival step of §2's data flow ("on
// completion the merged result is archived in C3"). chapterNumber is the
// same real chapter number passed as [Request.CurrentChapter];
// modelSpec is the resolved "provider:model" string recorded as
// [bookstore.Chapter.TranslationModel].
func PersistChapter(ctx context.Context, bookStore bookstore.Store, bookID string, chapterNumber int, untranslated []string, result *Result, modelSpec string) (bookstore.Chapter, error) {
	chapter := bookstore.Chapter{
		BookID:              bookID,
		ChapterNumber:       chapterNumber,
		Title:               result.Merged.Title,
		UntranslatedContent: untranslated,
		TranslatedContent:   result.Merged.Content,
		Summary:             result.Merged.Summary,
		TranslationModel:    modelSpec,
	}

	saved, err := bookStore.SaveChapter(ctx, chapter)
	if err != nil {
		return bookstore.Chapter{}, fmt.Errorf("orchestrator: persist chapter: %w", err)
	}
	return saved, nil
}

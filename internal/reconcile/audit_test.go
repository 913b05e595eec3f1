package reconcile

import (
	"context"
	"testing"

	"github.com/arcveil/inkbridge/internal/glossary"
)

func TestAudit_FindsCategoryAndTranslationDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := glossary.NewMemStore()

	// Pre-existing I2 violation: "天海" filed under two categories. The
	// in-memory store's BulkUpsert bypasses the Add-time I2 check, just as
	// importing a legacy export would.
	seed := []glossary.Entity{
		{Category: glossary.Characters, Untranslated: "天海", Translation: "Tianhai", LastChapter: 1},
		{Category: glossary.Places, Untranslated: "天海", Translation: "Heavenly Sea", LastChapter: 2},
		// I3 warning: two distinct terms sharing a translation.
		{Category: glossary.Titles, Untranslated: "宗主", Translation: "Sect Master", LastChapter: 3},
		{Category: glossary.Titles, Untranslated: "掌门", Translation: "Sect Master", LastChapter: 4},
	}
	if _, err := store.BulkUpsert(ctx, seed); err != nil {
		t.Fatalf("BulkUpsert() unexpected error: %v", err)
	}

	report, err := Audit(ctx, store)
	if err != nil {
		t.Fatalf("Audit() unexpected error: %v", err)
	}

	if len(report.CategoryDuplicates) != 1 {
		t.Fatalf("CategoryDuplicates = %+v, want 1 entry", report.CategoryDuplicates)
	}
	if len(report.TranslationDuplicates) != 1 {
		t.Fatalf("TranslationDuplicates = %+v, want 1 entry", report.TranslationDuplicates)
	}
	if report.TranslationDuplicates[0].Translation != "Sect Master" {
		t.Errorf("TranslationDuplicates[0].Translation = %q, want Sect Master", report.TranslationDuplicates[0].Translation)
	}
	if len(report.TranslationDuplicates[0].Entities) != 2 {
		t.Errorf("TranslationDuplicates[0].Entities = %+v, want 2 keys", report.TranslationDuplicates[0].Entities)
	}
}

func TestResolveDeleteAllButOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := glossary.NewMemStore()

	keep := glossary.EntityKey{Category: glossary.Titles, Untranslated: "宗主"}
	drop := glossary.EntityKey{Category: glossary.Titles, Untranslated: "掌门"}
	if _, err := store.BulkUpsert(ctx, []glossary.Entity{
		{Category: keep.Category, Untranslated: keep.Untranslated, Translation: "Sect Master", LastChapter: 1},
		{Category: drop.Category, Untranslated: drop.Untranslated, Translation: "Sect Master", LastChapter: 2},
	}); err != nil {
		t.Fatalf("BulkUpsert() unexpected error: %v", err)
	}

	group := glossary.TranslationGroup{Translation: "Sect Master", Entities: []glossary.EntityKey{keep, drop}}
	deleted, err := ResolveDeleteAllButOne(ctx, store, group, keep)
	if err != nil {
		t.Fatalf("ResolveDeleteAllButOne() unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("ResolveDeleteAllButOne() deleted = %d, want 1", deleted)
	}

	if _, err := store.Get(ctx, keep); err != nil {
		t.Errorf("Get(keep) unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, drop); err == nil {
		t.Error("Get(drop) succeeded, want it deleted")
	}
}

func TestResolveRename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := glossary.NewMemStore()

	key := glossary.EntityKey{Category: glossary.Titles, Untranslated: "掌门"}
	if _, err := store.BulkUpsert(ctx, []glossary.Entity{
		{Category: key.Category, Untranslated: key.Untranslated, Translation: "Sect Master", LastChapter: 1},
	}); err != nil {
		t.Fatalf("BulkUpsert() unexpected error: %v", err)
	}

	err := ResolveRename(ctx, store, []RenameSpec{{Key: key, Translation: "Sect Leader"}})
	if err != nil {
		t.Fatalf("ResolveRename() unexpected error: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.Translation != "Sect Leader" {
		t.Errorf("Translation after rename = %q, want Sect Leader", got.Translation)
	}
}

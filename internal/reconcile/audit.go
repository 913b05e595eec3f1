package reconcile

import (
	"context"
	"fmt"

	"github.com/arcveil/inkbridge/internal/glossary"
)

// AuditReport groups the two kinds of pre-existing violation the
// database-wide audit of §4.7 looks for: I2 violations (the same
// untranslated term filed under more than one category within a scope)
// and I3 warnings (the same translation shared by different untranslated
// terms within a scope).
type AuditReport struct {
	CategoryDuplicates    []glossary.PotentialDuplicate
	TranslationDuplicates []glossary.TranslationGroup
}

// Audit scans store for every I2/I3 violation (§4.7's "database-wide
// audit"). It is read-only; resolving a group is a separate step via
// [ResolveDeleteAllButOne], [ResolveRename], or by requesting advice
// through [RequestAdvice] — the caller chooses per group, matching the
// spec's "callers may interactively resolve each group by one of: delete
// all but one, rename some, ask the LLM for alternatives, or skip".
func Audit(ctx context.Context, store glossary.Store) (AuditReport, error) {
	categoryDups, err := store.DuplicateCategoryAudit(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("reconcile: audit: category duplicates: %w", err)
	}
	translationDups, err := store.DuplicateTranslationAudit(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("reconcile: audit: translation duplicates: %w", err)
	}
	return AuditReport{CategoryDuplicates: categoryDups, TranslationDuplicates: translationDups}, nil
}

// ResolveDeleteAllButOne deletes every entity in group except keep,
// implementing the "delete all but one" audit resolution.
func ResolveDeleteAllButOne(ctx context.Context, store glossary.Store, group glossary.TranslationGroup, keep glossary.EntityKey) (int, error) {
	deleted := 0
	for _, key := range group.Entities {
		if key == keep {
			continue
		}
		removed, err := store.Delete(ctx, key)
		if err != nil {
			return deleted, fmt.Errorf("reconcile: audit: delete %+v: %w", key, err)
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

// RenameSpec pairs an entity key with the translation it should be
// renamed to, for [ResolveRename].
type RenameSpec struct {
	Key         glossary.EntityKey
	Translation string
}

// ResolveRename applies translation renames to break a translation
// collision without deleting any entity, implementing the "rename some"
// audit resolution.
func ResolveRename(ctx context.Context, store glossary.Store, renames []RenameSpec) error {
	for _, r := range renames {
		translation := r.Translation
		if err := store.Update(ctx, r.Key, glossary.UpdateFields{Translation: &translation}); err != nil {
			return fmt.Errorf("reconcile: audit: rename %+v: %w", r.Key, err)
		}
	}
	return nil
}

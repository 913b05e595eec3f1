// Package reconcile implements Pass B of entity reconciliation (§4.7): the
// caller-facing decisions that resolve the potential duplicates [package
// orchestrator]'s chunk merge (Pass A) detected, the database-wide audit
// that finds I2/I3 violations predating the invariant, and the
// LLM-assisted advice prompt used to suggest alternative translations for
// one entity.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/arcveil/inkbridge/internal/glossary"
	"github.com/arcveil/inkbridge/internal/orchestrator"
)

// Decision is one of the four resolutions §4.7 Pass B offers for a
// [glossary.PotentialDuplicate].
type Decision int

const (
	// KeepExisting discards the newly proposed entity; the pre-existing
	// glossary row is left untouched.
	KeepExisting Decision = iota

	// MoveToNew re-files the pre-existing entity under the new category
	// the conflicting chunk proposed.
	MoveToNew

	// AllowDuplicate bypasses I2 for this one row: both the existing and
	// the new category keep an entry for the same untranslated term,
	// logged as an explicit opt-in (§3 I2).
	AllowDuplicate

	// EditManual replaces both the existing and new entries with a single
	// caller-chosen category and translation.
	EditManual
)

// ErrManualFieldsRequired is returned by [Apply] when decision is
// [EditManual] but manualCategory or manualTranslation is empty.
var ErrManualFieldsRequired = errors.New("reconcile: edit-manual decision requires category and translation")

// Apply resolves one potential duplicate against both the entity store
// and the in-flight merged result, atomically from the caller's point of
// view (§4.7 Pass B: "applies the decision to the entity store and to
// the merged result atomically"). bookID scopes the store operations;
// manualCategory/manualTranslation are only consulted for
// [EditManual].
func Apply(
	ctx context.Context,
	store glossary.Store,
	merged *orchestrator.MergedResult,
	dup glossary.PotentialDuplicate,
	decision Decision,
	bookID string,
	manualCategory glossary.Category,
	manualTranslation string,
) error {
	switch decision {
	case KeepExisting:
		delete(merged.Entities[dup.NewCategory], dup.Untranslated)
		return nil

	case MoveToNew:
		err := store.MoveCategory(ctx, bookID, dup.Untranslated, dup.ExistingCategory, dup.NewCategory)
		if err != nil && !errors.Is(err, glossary.ErrNotFound) && !errors.Is(err, glossary.ErrAlreadyInTarget) {
			return fmt.Errorf("reconcile: move category: %w", err)
		}
		if e, ok := merged.Entities[dup.ExistingCategory][dup.Untranslated]; ok {
			delete(merged.Entities[dup.ExistingCategory], dup.Untranslated)
			merged.Entities[dup.NewCategory][dup.Untranslated] = e
		}
		return nil

	case AllowDuplicate:
		// Explicit opt-in bypassing I2 (§3): Pass A never wrote the
		// conflicting entry (it only recorded the duplicate), so this
		// decision is the one place that actually files it under
		// NewCategory too, leaving ExistingCategory's row untouched.
		merged.Entities[dup.NewCategory][dup.Untranslated] = orchestrator.MergedEntity{
			Translation: dup.Translation,
			LastChapter: merged.Chapter,
		}
		return nil

	case EditManual:
		if manualCategory == "" || manualTranslation == "" {
			return ErrManualFieldsRequired
		}
		existing := merged.Entities[dup.ExistingCategory][dup.Untranslated]
		delete(merged.Entities[dup.ExistingCategory], dup.Untranslated)
		delete(merged.Entities[dup.NewCategory], dup.Untranslated)
		existing.Translation = manualTranslation
		merged.Entities[manualCategory][dup.Untranslated] = existing
		return nil

	default:
		return fmt.Errorf("reconcile: unknown decision %d", decision)
	}
}

// ApplyDefault resolves every duplicate in dups with [KeepExisting] —
// the conservative default a headless caller (the background queue
// worker, §5) applies when no interactive reviewer is available. It stops
// at, and returns, the first error [Apply] reports.
func ApplyDefault(ctx context.Context, store glossary.Store, merged *orchestrator.MergedResult, dups []glossary.PotentialDuplicate, bookID string) error {
	for _, d := range dups {
		if err := Apply(ctx, store, merged, d, KeepExisting, bookID, "", ""); err != nil {
			return err
		}
	}
	return nil
}

package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/arcveil/inkbridge/internal/glossary"
)

func TestCompose_SubstitutesKnownEntities(t *testing.T) {
	t.Parallel()
	known := []glossary.Entity{
		{Category: glossary.Characters, Untranslated: "张三", Translation: "Zhang San", Gender: glossary.GenderMale},
		{Category: glossary.Places, Untranslated: "天南", Translation: "Southern Heaven"},
	}
	got, err := Compose([]string{"张三走进了天南城。"}, known, "", false)
	if err != nil {
		t.Fatalf("Compose() unexpected error: %v", err)
	}
	if strings.Contains(got, "{{ENTITIES_JSON}}") {
		t.Error("Compose() should substitute the placeholder")
	}
	if !strings.Contains(got, "Zhang San") || !strings.Contains(got, "Southern Heaven") {
		t.Errorf("Compose() should embed both matched entities, got: %s", got)
	}
}

func TestCompose_OmitsEntitiesNotPresentInText(t *testing.T) {
	t.Parallel()
	known := []glossary.Entity{
		{Category: glossary.Characters, Untranslated: "李四", Translation: "Li Si"},
	}
	got, err := Compose([]string{"this chunk never mentions the entity"}, known, "", false)
	if err != nil {
		t.Fatalf("Compose() unexpected error: %v", err)
	}
	if strings.Contains(got, "Li Si") {
		t.Error("Compose() should not embed entities absent from the chunk text")
	}
}

func TestCompose_AllSevenCategoriesAlwaysPresent(t *testing.T) {
	t.Parallel()
	got, err := buildEntitiesJSON([]string{"no entities here"}, nil)
	if err != nil {
		t.Fatalf("buildEntitiesJSON() unexpected error: %v", err)
	}
	var decoded map[string]map[string]entityJSON
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, cat := range glossary.Categories {
		if _, ok := decoded[string(cat)]; !ok {
			t.Errorf("buildEntitiesJSON() missing category %q", cat)
		}
	}
	if len(decoded) != len(glossary.Categories) {
		t.Errorf("buildEntitiesJSON() has %d categories, want %d", len(decoded), len(glossary.Categories))
	}
}

func TestCompose_StripsExampleBlockForGemini(t *testing.T) {
	t.Parallel()
	got, err := Compose([]string{"text"}, nil, "", true)
	if err != nil {
		t.Fatalf("Compose() unexpected error: %v", err)
	}
	if strings.Contains(got, templateMarkerStart) || strings.Contains(got, templateMarkerEnd) {
		t.Error("Compose() should strip the example block for Gemini")
	}
}

func TestCompose_KeepsExampleBlockForNonGemini(t *testing.T) {
	t.Parallel()
	got, err := Compose([]string{"text"}, nil, "", false)
	if err != nil {
		t.Fatalf("Compose() unexpected error: %v", err)
	}
	if !strings.Contains(got, templateMarkerStart) {
		t.Error("Compose() should keep the example block for non-Gemini providers")
	}
}

func TestCompose_UsesCustomTemplate(t *testing.T) {
	t.Parallel()
	got, err := Compose([]string{"text"}, nil, "Custom template with {{ENTITIES_JSON}} inside.", false)
	if err != nil {
		t.Fatalf("Compose() unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "Custom template with") {
		t.Errorf("Compose() should use the custom template, got: %s", got)
	}
}

func TestCompose_EntityLastChapterIsAlwaysSentinel(t *testing.T) {
	t.Parallel()
	known := []glossary.Entity{
		{Category: glossary.Characters, Untranslated: "张三", Translation: "Zhang San", LastChapter: 7},
	}
	got, err := buildEntitiesJSON([]string{"张三"}, known)
	if err != nil {
		t.Fatalf("buildEntitiesJSON() unexpected error: %v", err)
	}
	var decoded map[string]map[string]entityJSON
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entry, ok := decoded["characters"]["张三"]
	if !ok {
		t.Fatal("expected entity to be present")
	}
	if entry.LastChapter != glossary.ThisChapterSentinel {
		t.Errorf("LastChapter = %q, want %q", entry.LastChapter, glossary.ThisChapterSentinel)
	}
}

package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/arcveil/inkbridge/internal/glossary"
	"github.com/arcveil/inkbridge/pkg/provider/llm"
	"github.com/arcveil/inkbridge/pkg/provider/llm/mock"
)

// TestTranslate_ChunkBoundaryEntityPropagation implements S1: a two-chunk
// chapter where 张三 appears in both chunks and the glossary starts
// empty. The stub's second response is only "correct" (and the test only
// accepts it) if chunk 2's system prompt already carries chunk 1's
// translation — proving propagation actually happened rather than both
// chunks coincidentally agreeing.
func TestTranslate_ChunkBoundaryEntityPropagation(t *testing.T) {
	t.Parallel()

	const chunk1Response = `{"title":"Chapter Five","chapter":5,"summary":"s1","content":["line one"],` +
		`"entities":{"characters":{"张三":{"translation":"Zhang San","gender":"male","last_chapter":"THIS CHAPTER"}},` +
		`"places":{},"organizations":{},"abilities":{},"titles":{},"equipment":{},"creatures":{}}}`
	const chunk2Response = `{"title":"Chapter Five","chapter":5,"summary":"s2","content":["line two"],` +
		`"entities":{"characters":{"张三":{"translation":"Zhang San","gender":"male","last_chapter":"THIS CHAPTER"}},` +
		`"places":{},"organizations":{},"abilities":{},"titles":{},"equipment":{},"creatures":{}}}`

	calls := 0
	provider := &mock.Provider{
		MaxCharsValue: 6,
		ChatFunc: func(req llm.ChatRequest) (*llm.CompletedResponse, error) {
			calls++
			systemPrompt := req.Messages[0].Content
			if calls == 1 {
				return &llm.CompletedResponse{Content: chunk1Response}, nil
			}
			if !strings.Contains(systemPrompt, "\"张三\": {\n            \"translation\": \"Zhang San\"") {
				t.Fatalf("chunk 2 system prompt does not carry chunk 1's discovered entity:\n%s", systemPrompt)
			}
			return &llm.CompletedResponse{Content: chunk2Response}, nil
		},
	}

	deps := Deps{
		Glossary: glossary.NewMemStore(),
		Provider: provider,
	}
	req := Request{
		Lines:          []string{"张三在这里", "张三还在这里"},
		CurrentChapter: 5,
	}

	result, err := Translate(context.Background(), deps, req)
	if err != nil {
		t.Fatalf("Translate() unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 chunk calls, got %d", calls)
	}

	entry, ok := result.Merged.Entities[glossary.Characters]["张三"]
	if !ok {
		t.Fatal("merged result missing 张三 under characters")
	}
	if entry.Translation != "Zhang San" {
		t.Errorf("translation = %q, want %q", entry.Translation, "Zhang San")
	}
	if entry.LastChapter != 5 {
		t.Errorf("LastChapter = %d, want 5", entry.LastChapter)
	}
	if len(result.Merged.Content) != 2 {
		t.Errorf("merged content has %d lines, want 2 (one per chunk)", len(result.Merged.Content))
	}
}

// TestTranslate_CrossCategoryConflict implements S2: a pre-existing
// (characters, 天海, Tianhai, book=1) entity and a chunk that proposes
// 天海 under places. The new entity must not be added to places; a
// potential duplicate must be reported naming both categories.
func TestTranslate_CrossCategoryConflict(t *testing.T) {
	t.Parallel()

	store := glossary.NewMemStore()
	if err := store.Add(context.Background(), glossary.Entity{
		Category:     glossary.Characters,
		Untranslated: "天海",
		Translation:  "Tianhai",
		BookID:       "book-1",
		LastChapter:  1,
	}); err != nil {
		t.Fatalf("seed Add() unexpected error: %v", err)
	}

	const chunkResponse = `{"title":"T","chapter":2,"summary":"s","content":["line"],` +
		`"entities":{"characters":{},"places":{"天海":{"translation":"Heavenly Sea","last_chapter":"THIS CHAPTER"}},` +
		`"organizations":{},"abilities":{},"titles":{},"equipment":{},"creatures":{}}}`

	provider := &mock.Provider{
		MaxCharsValue: 100,
		ChatResponses: []*llm.CompletedResponse{{Content: chunkResponse}},
	}

	deps := Deps{Glossary: store, Provider: provider}
	req := Request{Lines: []string{"天海的风景很美。"}, BookID: "book-1", CurrentChapter: 2}

	result, err := Translate(context.Background(), deps, req)
	if err != nil {
		t.Fatalf("Translate() unexpected error: %v", err)
	}

	if _, ok := result.Merged.Entities[glossary.Places]["天海"]; ok {
		t.Error("天海 should not have been added under places after a cross-category conflict")
	}

	if len(result.PotentialDuplicates) != 1 {
		t.Fatalf("expected exactly 1 potential duplicate, got %d: %+v", len(result.PotentialDuplicates), result.PotentialDuplicates)
	}
	dup := result.PotentialDuplicates[0]
	if dup.ExistingCategory != glossary.Characters || dup.NewCategory != glossary.Places {
		t.Errorf("duplicate categories = existing:%q new:%q, want existing:characters new:places", dup.ExistingCategory, dup.NewCategory)
	}
	if dup.Translation != "Heavenly Sea" {
		t.Errorf("dup.Translation = %q, want the newly proposed translation Heavenly Sea", dup.Translation)
	}
	if dup.ExistingTranslation != "Tianhai" {
		t.Errorf("dup.ExistingTranslation = %q, want Tianhai", dup.ExistingTranslation)
	}
}

func TestTranslate_EmptyChapterReturnsError(t *testing.T) {
	t.Parallel()
	deps := Deps{Glossary: glossary.NewMemStore(), Provider: &mock.Provider{}}
	_, err := Translate(context.Background(), deps, Request{})
	if err != ErrEmptyChapter {
		t.Errorf("Translate() error = %v, want ErrEmptyChapter", err)
	}
}

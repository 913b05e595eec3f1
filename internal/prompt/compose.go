// Package prompt composes the system prompt handed to a provider for one
// translation chunk (C5, §4.5): it filters the glossary down to the terms
// that actually occur in the chunk, embeds them as JSON, substitutes the
// {{ENTITIES_JSON}} placeholder, and strips the illustrative example block
// when the target provider is Gemini.
package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/arcveil/inkbridge/internal/glossary"
)

// entityJSON is the wire shape of one entity entry inside the composed
// prompt's {{ENTITIES_JSON}} blob. LastChapter is always the literal
// sentinel — the known-entities block shown to the model never carries a
// real chapter number (§9's P7 discussion; grounded on
// original_source/translation_engine.py's generate_system_prompt, which
// always passes "THIS CHAPTER" regardless of do_count).
type entityJSON struct {
	Translation          string `json:"translation"`
	LastChapter          string `json:"last_chapter"`
	Gender               string `json:"gender,omitempty"`
	IncorrectTranslation string `json:"incorrect_translation,omitempty"`
}

// Compose builds the system prompt for one chunk of chapter text.
//
// lines is the chunk's source text; known is every entity visible to this
// book (global plus book-scoped, as returned by glossary.Store.ForBook).
// template is the book's custom override, or "" to use [DefaultTemplate].
// isGemini selects whether the illustrative example block is stripped.
func Compose(lines []string, known []glossary.Entity, template string, isGemini bool) (string, error) {
	if template == "" {
		template = DefaultTemplate
	}

	entitiesJSON, err := buildEntitiesJSON(lines, known)
	if err != nil {
		return "", fmt.Errorf("prompt: compose: %w", err)
	}

	out := strings.Replace(template, "{{ENTITIES_JSON}}", entitiesJSON, 1)
	if isGemini {
		out = stripExampleBlock(out)
	}
	return out, nil
}

// buildEntitiesJSON filters known down to the entries whose Untranslated
// form occurs in the NFC-joined chunk text, grouped by category, and
// serializes the result as indented JSON with every one of the seven
// categories present even when empty (§4.5 step 1–2, §6.1).
func buildEntitiesJSON(lines []string, known []glossary.Entity) (string, error) {
	byCategory := make(map[glossary.Category][]glossary.Entity, len(glossary.Categories))
	for _, e := range known {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	filtered := make(map[string]map[string]entityJSON, len(glossary.Categories))
	for _, cat := range glossary.Categories {
		found := glossary.ScanLines(lines, byCategory[cat], 0)
		entry := make(map[string]entityJSON, len(found))
		for _, e := range found {
			entry[e.Untranslated] = entityJSON{
				Translation:          e.Translation,
				LastChapter:          glossary.ThisChapterSentinel,
				Gender:               string(e.Gender),
				IncorrectTranslation: e.IncorrectTranslation,
			}
		}
		filtered[string(cat)] = entry
	}

	raw, err := json.MarshalIndent(filtered, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal entities: %w", err)
	}
	return string(raw), nil
}

var exampleBlockPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(templateMarkerStart) + `.*?` + regexp.QuoteMeta(templateMarkerEnd))

// stripExampleBlock removes the block delimited by templateMarkerStart and
// templateMarkerEnd, inclusive, matching
// original_source/translation_engine.py's Gemini-specific regex strip.
func stripExampleBlock(prompt string) string {
	return exampleBlockPattern.ReplaceAllString(prompt, "")
}

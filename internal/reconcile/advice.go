package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arcveil/inkbridge/internal/glossary"
	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// adviceSystemPrompt is the fixed instruction given to the advice model
// (§4.7 supplemental, grounded on
// original_source/translation_engine.py's get_translation_options).
const adviceSystemPrompt = `Your task is to offer translation options. The user text is a JSON node describing a translation you performed previously, including "context" — the text 20-50 characters before and after the untranslated term. The user did not like the translation and wants alternatives: offer exactly three, plus a short message (fewer than 200 words) explaining the untranslated source term and why you chose your original rendering.

Include a literal translation of each character in your message, but not necessarily in your alternatives unless the term is being transliterated (e.g. a foreign name). Order the three alternatives by your preference, and use the context to sharpen your advice.

A common reason a translation gets rejected is that it was simply transliterated — if your earlier translation did that, do not transliterate again.

IMPORTANT: if "existing_translations" is present in the node, avoid suggesting anything identical or very close to those, since that would cause confusion. Make your suggestions clearly distinct from them.

Respond with exactly this JSON schema:
{
  "message": "your explanation",
  "options": ["translation option 1", "translation option 2", "translation option 3"]
}

Do not include the original translation among the three options.`

// AdviceNode is the entity-plus-context payload sent to the advice model
// (§4.7 supplemental), serialized as JSON in the user turn exactly as
// original_source/translation_engine.py dumps its "node" dict.
type AdviceNode struct {
	Category             glossary.Category `json:"category"`
	Untranslated         string            `json:"untranslated"`
	Translation          string            `json:"translation"`
	Context              string            `json:"context,omitempty"`
	ExistingTranslations []string          `json:"existing_translations,omitempty"`
}

// AdviceResponse is the advice model's strict-JSON reply.
type AdviceResponse struct {
	Message string   `json:"message"`
	Options []string `json:"options"`
}

// FindContext returns up to window runes of text before and after the
// first occurrence of untranslated within lines (joined with newlines),
// mirroring find_substring_with_context's fixed-width context window.
// Returns "" if untranslated does not occur.
func FindContext(lines []string, untranslated string, window int) string {
	text := strings.Join(lines, "\n")
	idx := strings.Index(text, untranslated)
	if idx < 0 {
		return ""
	}

	runes := []rune(text)
	startRune := utf8.RuneCountInString(text[:idx])
	endRune := startRune + utf8.RuneCountInString(untranslated)

	lo := startRune - window
	if lo < 0 {
		lo = 0
	}
	hi := endRune + window
	if hi > len(runes) {
		hi = len(runes)
	}
	return string(runes[lo:hi])
}

// BuildExistingTranslationsExclusion fetches similar existing
// translations from store to populate [AdviceNode.ExistingTranslations],
// using the "same first character" heuristic of §4.7 supplemental.
func BuildExistingTranslationsExclusion(ctx context.Context, store glossary.Store, bookID, untranslated string, limit int) ([]string, error) {
	similar, err := store.SimilarTranslations(ctx, bookID, untranslated, limit)
	if err != nil {
		return nil, fmt.Errorf("reconcile: advice: similar translations: %w", err)
	}
	return similar, nil
}

// RequestAdvice asks the advice model for alternative translations for
// node, per §4.7 supplemental. If node.ExistingTranslations contains an
// exact (case-insensitive) match for node.Translation, a deterministic
// warning paragraph is appended to the response's Message — the engine
// never silently drops that signal, it only ever augments the model's own
// explanation.
func RequestAdvice(ctx context.Context, provider llm.Provider, model string, node AdviceNode) (AdviceResponse, error) {
	payload, err := json.MarshalIndent(node, "", "    ")
	if err != nil {
		return AdviceResponse{}, fmt.Errorf("reconcile: advice: marshal node: %w", err)
	}

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: adviceSystemPrompt},
			{Role: llm.RoleUser, Content: string(payload)},
		},
		Model:          model,
		Temperature:    1,
		TopP:           1,
		ResponseFormat: llm.ResponseFormatJSONObject,
	})
	if err != nil {
		return AdviceResponse{}, fmt.Errorf("reconcile: advice: chat: %w", err)
	}

	var parsed AdviceResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return AdviceResponse{}, &llm.MalformedJSON{Provider: "advice", Raw: resp.Content, Err: err}
	}

	if dup := findExactDuplicate(node); dup != "" {
		parsed.Message = parsed.Message + duplicateWarning(dup)
	}
	return parsed, nil
}

// findExactDuplicate reports the first entry in node.ExistingTranslations
// that matches node.Translation case-insensitively, or "" if none does.
func findExactDuplicate(node AdviceNode) string {
	if node.Translation == "" {
		return ""
	}
	for _, t := range node.ExistingTranslations {
		if strings.EqualFold(t, node.Translation) {
			return t
		}
	}
	return ""
}

// duplicateWarning renders the deterministic warning paragraph appended
// when the current translation collides with an existing one, matching
// the original's fixed warning text.
func duplicateWarning(dup string) string {
	return fmt.Sprintf("\n\nWARNING: the current translation conflicts with an existing entity translated as %q. Consider choosing a more distinctive translation to avoid confusion.", dup)
}

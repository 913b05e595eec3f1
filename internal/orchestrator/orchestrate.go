package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcveil/inkbridge/internal/glossary"
	"github.com/arcveil/inkbridge/internal/observe"
	"github.com/arcveil/inkbridge/internal/prompt"
	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// ProgressEvent reports chunk-level translation progress (§4.6 step 3a-b):
// an expected-token estimate at chunk start, and streamed deltas as they
// arrive.
type ProgressEvent struct {
	ChunkIndex  int
	TotalChunks int

	// EstimatedTokens is set on the event emitted at chunk start, derived
	// from the learned char->token ratio.
	EstimatedTokens int

	// Delta is set on events emitted while draining a stream.
	Delta string
}

// ProgressFunc receives [ProgressEvent]s as a chapter translates. A nil
// func is valid — progress reporting is optional.
type ProgressFunc func(ProgressEvent)

// Deps carries the collaborators [Translate] needs: the glossary store it
// reads the known-entity snapshot from, the provider it calls per chunk,
// and the ratio tracker it consults for progress estimation and updates
// on completion.
type Deps struct {
	Glossary glossary.Store
	Provider llm.Provider
	Ratios   *RatioTracker
}

// Request describes one chapter to translate (§4.6's inputs).
type Request struct {
	// Lines is the chapter's source text.
	Lines []string

	// BookID scopes the glossary lookup; empty means only global entities
	// are visible.
	BookID string

	// CurrentChapter is the real chapter number this translation run is
	// producing. It always wins over whatever sentinel or guessed number
	// a chunk's JSON response carries (P7).
	CurrentChapter int

	// PromptTemplate is the book's custom override, or "" to use
	// [prompt.DefaultTemplate].
	PromptTemplate string

	// IsGeminiProvider selects whether the illustrative example block is
	// stripped from the composed prompt (§4.5 step 4, S5).
	IsGeminiProvider bool

	// Stream selects the streaming chat path per chunk (§4.6 step 3b).
	Stream bool

	// Model is the provider-specific model identifier to send with every
	// chunk's chat request.
	Model string

	// OnProgress, if non-nil, receives progress events as chunks are
	// processed.
	OnProgress ProgressFunc
}

// Translate runs the full chunked streaming translation algorithm of
// §4.6: it chunks req.Lines, composes and refreshes the system prompt
// between chunks via the prompt composer (C5), calls deps.Provider once
// per chunk, parses and merges each chunk's response under §4.7 Pass A,
// and on completion records the observed char->token ratio.
//
// Translate does not write anything to deps.Glossary or any chapter
// store — the caller commits [Result.Merged] after resolving
// [Result.PotentialDuplicates] (§4.7 Pass B).
func Translate(ctx context.Context, deps Deps, req Request) (*Result, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyChapter
	}

	logger := observe.Logger(ctx)

	totalChars := charCount(req.Lines)
	maxChars := deps.Provider.MaxChars()
	n := chunkCount(totalChars, maxChars)
	chunks := SplitByN(req.Lines, n)

	snapshot, err := deps.Glossary.ForBook(ctx, req.BookID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load glossary for book %q: %w", req.BookID, err)
	}

	running := newMergedResult()
	newEntities := make(map[glossary.Category]map[string]MergedEntity, len(glossary.Categories))
	for _, cat := range glossary.Categories {
		newEntities[cat] = make(map[string]MergedEntity)
	}

	known := snapshot
	var allDuplicates []glossary.PotentialDuplicate
	totalOutputTokens := 0

	for idx, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sysPrompt, err := prompt.Compose(chunk, known, req.PromptTemplate, req.IsGeminiProvider)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: compose prompt for chunk %d: %w", idx, err)
		}

		ratio := DefaultRatio
		if deps.Ratios != nil {
			ratio = deps.Ratios.Average()
		}
		estimated := int(float64(charCount(chunk)) * ratio)
		emitProgress(req.OnProgress, ProgressEvent{ChunkIndex: idx, TotalChunks: len(chunks), EstimatedTokens: estimated})

		messages := []llm.Message{
			{Role: llm.RoleSystem, Content: sysPrompt},
			{Role: llm.RoleUser, Content: strings.Join(chunk, "\n")},
		}

		raw, outputTokens, err := callChunk(ctx, deps.Provider, messages, req, idx)
		if err != nil {
			return nil, err
		}
		totalOutputTokens += outputTokens

		parsed, err := parseChunkResponse(idx, raw)
		if err != nil {
			return nil, err
		}

		// A term the pre-run snapshot already files under another category
		// is reported as a potential duplicate instead of being merged.
		for _, e := range snapshot {
			for _, cat := range glossary.Categories {
				data, ok := parsed.Entities[string(cat)][e.Untranslated]
				if !ok || cat == e.Category {
					continue
				}
				delete(parsed.Entities[string(cat)], e.Untranslated)
				d := glossary.PotentialDuplicate{Untranslated: e.Untranslated, Translation: data.Translation, NewCategory: cat, ExistingCategory: e.Category, ExistingTranslation: e.Translation}
				logger.Warn(fmtDuplicateLog(d))
				allDuplicates = append(allDuplicates, d)
			}
		}

		preChunkKeys := snapshotKeys(running)

		currentChapter := req.CurrentChapter
		if currentChapter == 0 {
			currentChapter = parsed.Chapter
		}

		dups := mergeChunk(running, parsed, currentChapter)
		for _, d := range dups {
			logger.Warn(fmtDuplicateLog(d))
		}
		allDuplicates = append(allDuplicates, dups...)

		collectNewEntities(running, preChunkKeys, newEntities)

		if idx < len(chunks)-1 {
			known = mergeKnownWithRunning(snapshot, running)
		}
	}

	if deps.Ratios != nil {
		if err := deps.Ratios.Record(totalOutputTokens, totalChars); err != nil {
			logger.Warn("failed to persist token ratio history", "err", err)
		}
	}

	return &Result{
		Merged:              *running,
		NewEntities:         newEntities,
		SnapshotBefore:      snapshot,
		CurrentChapter:      running.Chapter,
		TotalCharCount:      totalChars,
		PotentialDuplicates: allDuplicates,
	}, nil
}

// callChunk issues one chunk's chat request, streaming or not per
// req.Stream, and returns the accumulated raw content plus the observed
// (or estimated) output token count.
func callChunk(ctx context.Context, p llm.Provider, messages []llm.Message, req Request, idx int) (string, int, error) {
	chatReq := llm.ChatRequest{
		Messages:       messages,
		Model:          req.Model,
		Temperature:    1,
		TopP:           1,
		ResponseFormat: llm.ResponseFormatJSONObject,
	}

	if !req.Stream {
		resp, err := p.Chat(ctx, chatReq)
		if err != nil {
			return "", 0, fmt.Errorf("orchestrator: chunk %d: %w", idx, err)
		}
		return resp.Content, resp.Usage.CompletionTokens, nil
	}

	ch, err := p.StreamChat(ctx, chatReq)
	if err != nil {
		return "", 0, fmt.Errorf("orchestrator: chunk %d: %w", idx, err)
	}

	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		case c, ok := <-ch:
			if !ok {
				content := b.String()
				tokens, _ := p.CountTokens([]llm.Message{{Role: llm.RoleAssistant, Content: content}})
				return content, tokens, nil
			}
			if c.Delta != "" {
				b.WriteString(c.Delta)
				emitProgress(req.OnProgress, ProgressEvent{ChunkIndex: idx, Delta: c.Delta})
			}
		}
	}
}

func emitProgress(fn ProgressFunc, ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}

// snapshotKeys records, for every category, which untranslated keys
// already exist in running before the current chunk is merged — used to
// compute step 3e's "newly introduced this chunk" set.
func snapshotKeys(running *MergedResult) map[glossary.Category]map[string]bool {
	out := make(map[glossary.Category]map[string]bool, len(glossary.Categories))
	for _, cat := range glossary.Categories {
		seen := make(map[string]bool, len(running.Entities[cat]))
		for k := range running.Entities[cat] {
			seen[k] = true
		}
		out[cat] = seen
	}
	return out
}

// collectNewEntities adds to accum every (category, key) present in
// running.Entities but absent from before, implementing §4.6 step 3e.
func collectNewEntities(running *MergedResult, before map[glossary.Category]map[string]bool, accum map[glossary.Category]map[string]MergedEntity) {
	for _, cat := range glossary.Categories {
		for key, e := range running.Entities[cat] {
			if before[cat][key] {
				continue
			}
			accum[cat][key] = e
		}
	}
}

// mergeKnownWithRunning builds the entity list handed to the next chunk's
// prompt: the original book snapshot plus every entity discovered so far
// this chapter (not yet persisted), so later chunks see translations
// chosen by earlier chunks (§4.6 step 3f).
func mergeKnownWithRunning(snapshot []glossary.Entity, running *MergedResult) []glossary.Entity {
	out := make([]glossary.Entity, 0, len(snapshot))
	seen := make(map[glossary.EntityKey]bool, len(snapshot))
	for _, e := range snapshot {
		seen[e.Key()] = true
		out = append(out, e)
	}
	for _, cat := range glossary.Categories {
		for key, e := range running.Entities[cat] {
			ge := glossary.Entity{
				Category:             cat,
				Untranslated:         key,
				Translation:          e.Translation,
				Gender:               e.Gender,
				IncorrectTranslation: e.IncorrectTranslation,
			}
			if seen[ge.Key()] {
				continue
			}
			out = append(out, ge)
		}
	}
	return out
}

// Package gemini provides the Google Gemini provider adapter (§4.1),
// grounded on original_source/providers/gemini_provider.py:
// _convert_messages_to_gemini_format (system_instruction lift, "model"
// role rename, "parts" message shape), _create_response_schema (JSON mode
// via a concrete response schema instead of prompt instructions), the
// least-restrictive safety settings, and the finish-reason mapping that
// turns Gemini's safety-block reasons into typed errors instead of silent
// empty strings.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// defaultMaxChars mirrors §6.3's documented default.
const defaultMaxChars = 5000

// Provider implements llm.Provider using the Google Gemini API.
type Provider struct {
	client    *genai.Client
	model     string
	maxChars  int
	maxTokens int
}

type config struct {
	maxChars  int
	maxTokens int
}

// Option is a functional option for [New].
type Option func(*config)

// WithMaxChars overrides the per-provider chunk size cap (§6.3).
func WithMaxChars(n int) Option {
	return func(c *config) { c.maxChars = n }
}

// WithMaxOutputTokens overrides the per-provider generation cap (§6.3).
func WithMaxOutputTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// New constructs a new Gemini [Provider].
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	cfg := &config{maxChars: defaultMaxChars}
	for _, o := range opts {
		o(cfg)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	return &Provider{client: client, model: model, maxChars: cfg.maxChars, maxTokens: cfg.maxTokens}, nil
}

// MaxChars implements llm.Provider.
func (p *Provider) MaxChars() int { return p.maxChars }

// CountTokens implements llm.Provider with a conservative 4-chars-per-token
// approximation; computing an exact Gemini token count requires a network
// round trip the orchestrator's chunking step should not pay for.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total, nil
}

// safetyCategories lists every category Gemini's adapter must neutralize
// (core categories per gemini_provider.py's explicit list).
var safetyCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
	genai.HarmCategoryCivicIntegrity,
}

func safetySettings() []*genai.SafetySetting {
	settings := make([]*genai.SafetySetting, 0, len(safetyCategories))
	for _, cat := range safetyCategories {
		settings = append(settings, &genai.SafetySetting{
			Category:  cat,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

// responseSchema builds the concrete JSON schema the prompt composer
// strips its illustrative example for (§4.5 step 4, §9's "seven
// categories" decision — creatures is included alongside the six the
// original schema ever grew).
func responseSchema() *genai.Schema {
	entityEntry := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"translation":  {Type: genai.TypeString},
			"gender":       {Type: genai.TypeString},
			"last_chapter": {Type: genai.TypeInteger},
		},
	}
	categorySchema := &genai.Schema{Type: genai.TypeObject, AdditionalProperties: entityEntry}

	entityCategories := map[string]*genai.Schema{}
	for _, c := range []string{"characters", "places", "organizations", "abilities", "titles", "equipment", "creatures"} {
		entityCategories[c] = categorySchema
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":    {Type: genai.TypeString},
			"chapter":  {Type: genai.TypeInteger},
			"summary":  {Type: genai.TypeString},
			"content":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"entities": {Type: genai.TypeObject, Properties: entityCategories},
		},
		Required: []string{"title", "chapter", "summary", "content", "entities"},
	}
}

// buildConfig converts a ChatRequest into genai generation config plus the
// converted contents, lifting the leading system message into
// SystemInstruction (§4.1).
func (p *Provider) buildConfig(req llm.ChatRequest) (*genai.GenerateContentConfig, []*genai.Content) {
	var systemInstruction *genai.Content
	contents := make([]*genai.Content, 0, len(req.Messages))

	for i, m := range req.Messages {
		if m.Role == llm.RoleSystem && i == 0 {
			systemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
			continue
		}
		role := genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	cfg := &genai.GenerateContentConfig{
		SafetySettings:    safetySettings(),
		SystemInstruction: systemInstruction,
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP != 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if req.ResponseFormat == llm.ResponseFormatJSONObject {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = responseSchema()
	}

	return cfg, contents
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.CompletedResponse, error) {
	cfg, contents := p.buildConfig(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in response")
	}
	candidate := resp.Candidates[0]

	reason, blockErr := mapFinishReason(candidate.FinishReason)
	if blockErr != nil {
		return nil, blockErr
	}

	out := &llm.CompletedResponse{
		Content:      candidateText(candidate),
		FinishReason: reason,
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if out.FinishReason == llm.FinishLength {
		return out, &llm.TruncatedOutput{Provider: "gemini"}
	}
	return out, nil
}

// StreamChat implements llm.Provider.
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	cfg, contents := p.buildConfig(req)

	ch := make(chan llm.StreamChunk, 32)
	go func() {
		defer close(ch)

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			if err != nil {
				select {
				case ch <- llm.StreamChunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			candidate := resp.Candidates[0]
			text := candidateText(candidate)
			done := candidate.FinishReason != ""
			if text != "" || done {
				select {
				case ch <- llm.StreamChunk{Delta: text, Done: done}:
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
		}
	}()

	return ch, nil
}

// candidateText concatenates every text part in a candidate's content.
func candidateText(c *genai.Candidate) string {
	if c.Content == nil {
		return ""
	}
	var out string
	for _, part := range c.Content.Parts {
		out += part.Text
	}
	return out
}

// mapFinishReason maps Gemini's finish reasons onto the normalized
// enumeration, turning every safety-adjacent reason into a typed
// [llm.SafetyBlocked] error instead of letting it surface as an empty
// string (§4.1).
func mapFinishReason(reason genai.FinishReason) (llm.FinishReason, error) {
	switch reason {
	case "", genai.FinishReasonStop:
		return llm.FinishStop, nil
	case genai.FinishReasonMaxTokens:
		return llm.FinishLength, nil
	case genai.FinishReasonSafety, genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII, genai.FinishReasonLanguage, genai.FinishReasonOther:
		return llm.FinishContentFilter, &llm.SafetyBlocked{Provider: "gemini", Category: string(reason)}
	default:
		return llm.FinishStop, nil
	}
}

// classifyError maps a raw Gemini SDK error onto the provider failure
// taxonomy (§7).
func classifyError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return &llm.AuthError{Provider: "gemini", Err: err}
		case 429:
			return &llm.RateLimitError{Provider: "gemini", Err: err}
		}
	}
	return &llm.TransportError{Provider: "gemini", Err: err}
}

// Package anthropic provides the Claude provider adapter (§4.1), grounded
// on original_source/providers/claude_provider.py: the leading system
// message is lifted into a separate field, JSON mode is emulated via a
// prompt instruction plus fence-stripping, and temperature/top_p are never
// both emitted in the same request.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// defaultMaxChars mirrors §6.3's documented default; Claude's adapter uses
// the same figure as OpenAI unless overridden.
const defaultMaxChars = 5000

// jsonInstruction is appended to the final user message when JSON mode is
// requested, matching claude_provider.py's chat_completion exactly.
const jsonInstruction = "\n\nIMPORTANT: You must respond with valid JSON only. " +
	"Do not include any text before or after the JSON object. " +
	"Do not wrap the JSON in markdown code fences."

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client    anthropic.Client
	model     string
	maxChars  int
	maxTokens int
}

type config struct {
	baseURL   string
	maxChars  int
	maxTokens int
}

// Option is a functional option for [New].
type Option func(*config)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithMaxChars overrides the per-provider chunk size cap (§6.3).
func WithMaxChars(n int) Option {
	return func(c *config) { c.maxChars = n }
}

// WithMaxOutputTokens overrides the per-provider generation cap (§6.3).
// Claude requires max_tokens on every request; claude_provider.py defaults
// this to 8192 when unset.
func WithMaxOutputTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

const defaultMaxOutputTokens = 8192

// New constructs a new Anthropic [Provider].
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model must not be empty")
	}

	cfg := &config{maxChars: defaultMaxChars, maxTokens: defaultMaxOutputTokens}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxChars:  cfg.maxChars,
		maxTokens: cfg.maxTokens,
	}, nil
}

// MaxChars implements llm.Provider.
func (p *Provider) MaxChars() int { return p.maxChars }

// CountTokens implements llm.Provider with a rough approximation: the
// Anthropic SDK's own token-counting endpoint requires a network round
// trip, which the orchestrator's chunking must not depend on for every
// call, so a conservative 4-chars-per-token estimate is used here — the
// same approximation claude_provider.py leaves to the caller.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total, nil
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.CompletedResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	content := extractText(msg)
	if req.ResponseFormat == llm.ResponseFormatJSONObject {
		content = stripMarkdownFences(content)
	}

	out := &llm.CompletedResponse{
		Content:      content,
		FinishReason: normalizeStopReason(string(msg.StopReason)),
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	if out.FinishReason == llm.FinishLength {
		return out, &llm.TruncatedOutput{Provider: "anthropic"}
	}
	return out, nil
}

// StreamChat implements llm.Provider.
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	ch := make(chan llm.StreamChunk, 32)
	go func() {
		defer close(ch)

		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if text := variant.Delta.Text; text != "" {
					select {
					case ch <- llm.StreamChunk{Delta: text}:
					case <-ctx.Done():
						return
					}
				}
			case anthropic.MessageStopEvent:
				select {
				case ch <- llm.StreamChunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case ch <- llm.StreamChunk{Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// buildParams converts a ChatRequest into Anthropic SDK params, lifting
// the leading system message out of the message list and emulating JSON
// mode via a trailing instruction (claude_provider.py).
func (p *Provider) buildParams(req llm.ChatRequest) (anthropic.MessageNewParams, error) {
	var system string
	var rest []llm.Message
	for i, m := range req.Messages {
		if m.Role == llm.RoleSystem && system == "" && i == 0 {
			system = m.Content
			continue
		}
		rest = append(rest, m)
	}

	jsonMode := req.ResponseFormat == llm.ResponseFormatJSONObject
	if jsonMode && len(rest) > 0 {
		last := rest[len(rest)-1]
		last.Content += jsonInstruction
		rest[len(rest)-1] = last
	}

	messages := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		switch m.Role {
		case llm.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case llm.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: unexpected role %q after system lift", m.Role)
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	// The Anthropic API rejects requests with both temperature and top_p
	// set; temperature is the default sampling parameter (§4.1), top_p is
	// used only when the caller explicitly opts in via UseTopP.
	if req.UseTopP && req.TopP != 0 {
		params.TopP = param.NewOpt(req.TopP)
	} else if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	return params, nil
}

// extractText concatenates every text content block in msg.
func extractText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				b.WriteString(tb.Text)
			}
		}
	}
	return b.String()
}

// normalizeStopReason maps Claude's stop_reason onto the normalized
// enumeration (§4.1), matching claude_provider.py's
// `"stop" if response.stop_reason == "end_turn" else response.stop_reason`.
func normalizeStopReason(reason string) llm.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "tool_use":
		return llm.FinishStop
	case "max_tokens":
		return llm.FinishLength
	default:
		return llm.FinishStop
	}
}

// stripMarkdownFences removes a leading/trailing ```-fenced wrapper, the
// same logic as claude_provider.py's _strip_markdown_fences.
func stripMarkdownFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	if idx := strings.Index(content, "\n"); idx != -1 {
		content = content[idx+1:]
	} else {
		content = content[3:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// ExtractJSON attempts to parse content as JSON, falling back to a
// brace-counting scan for the first balanced {...} object when the raw
// string parses fails — the same two-stage strategy as
// claude_provider.py's validate_json_response, since Claude sometimes
// wraps JSON in explanatory text despite instructions.
func ExtractJSON(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}

	start := strings.IndexByte(content, '{')
	if start == -1 {
		return &llm.MalformedJSON{Provider: "anthropic", Raw: content, Err: errors.New("no JSON object found")}
	}

	depth := 0
	end := -1
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return &llm.MalformedJSON{Provider: "anthropic", Raw: content, Err: errors.New("unbalanced braces")}
	}

	if err := json.Unmarshal([]byte(content[start:end]), out); err != nil {
		return &llm.MalformedJSON{Provider: "anthropic", Raw: content, Err: err}
	}
	return nil
}

// classifyError maps a raw Anthropic SDK error onto the provider failure
// taxonomy (§7).
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &llm.AuthError{Provider: "anthropic", Err: err}
		case http.StatusTooManyRequests:
			return &llm.RateLimitError{Provider: "anthropic", Err: err}
		}
	}
	return &llm.TransportError{Provider: "anthropic", Err: err}
}

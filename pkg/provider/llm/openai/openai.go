// Package openai provides the OpenAI-compatible provider adapter (§4.1).
// It is also used for DeepSeek via [WithBaseURL], since DeepSeek speaks the
// same chat-completion wire format.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/pkoukk/tiktoken-go"

	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// Provider implements llm.Provider using the OpenAI chat-completions API.
// It natively supports structured JSON mode (§4.1), so no emulation is
// needed here unlike the Anthropic adapter.
type Provider struct {
	client    oai.Client
	model     string
	maxChars  int
	maxTokens int
	enc       *tiktoken.Tiktoken
}

// config holds optional configuration for the provider.
type config struct {
	baseURL   string
	timeout   time.Duration
	maxChars  int
	maxTokens int
}

// Option is a functional option for [New].
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL — used to point
// this adapter at DeepSeek's API instead (§4.1, §6.4's `ds` alias).
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxChars overrides the per-provider chunk size cap (§6.3).
func WithMaxChars(n int) Option {
	return func(c *config) { c.maxChars = n }
}

// WithMaxOutputTokens overrides the per-provider generation cap (§6.3).
func WithMaxOutputTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// defaultMaxChars is used when no per-provider override is configured
// (§6.3's documented default).
const defaultMaxChars = 5000

// New constructs a new OpenAI-compatible [Provider].
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{maxChars: defaultMaxChars}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("openai: load tokenizer: %w", err)
		}
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:    client,
		model:     model,
		maxChars:  cfg.maxChars,
		maxTokens: cfg.maxTokens,
		enc:       enc,
	}, nil
}

// MaxChars implements llm.Provider.
func (p *Provider) MaxChars() int { return p.maxChars }

// CountTokens implements llm.Provider using real BPE counting via
// tiktoken-go, replacing the char/4 approximation a naive implementation
// would reach for.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(p.enc.Encode(m.Content, nil, nil))
		total += 4 // per-message role/formatting overhead, OpenAI's documented estimate
	}
	return total, nil
}

// StreamChat implements llm.Provider.
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, classifyError("openai", err)
	}

	ch := make(chan llm.StreamChunk, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			out := llm.StreamChunk{Delta: choice.Delta.Content}
			if choice.FinishReason != "" {
				out.Done = true
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
			if out.Done {
				return
			}
		}
		if !ctxCancelled(ctx) {
			select {
			case ch <- llm.StreamChunk{Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.CompletedResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	out := &llm.CompletedResponse{
		Content:      choice.Message.Content,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if out.FinishReason == llm.FinishLength {
		return out, &llm.TruncatedOutput{Provider: "openai"}
	}
	return out, nil
}

// normalizeFinishReason maps OpenAI's native finish_reason strings onto
// the normalized enumeration (§4.1).
func normalizeFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "length":
		return llm.FinishLength
	case "content_filter":
		return llm.FinishContentFilter
	default:
		return llm.FinishStop
	}
}

// buildParams converts a ChatRequest into OpenAI SDK params.
func (p *Provider) buildParams(req llm.ChatRequest) (oai.ChatCompletionNewParams, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}

	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.TopP != 0 {
		params.TopP = param.NewOpt(req.TopP)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}

	if req.ResponseFormat == llm.ResponseFormatJSONObject {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params, nil
}

// convertMessage converts an llm.Message to an OpenAI SDK message param.
func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}

// ctxCancelled reports whether ctx has already been cancelled, used to
// avoid sending a spurious done-chunk on an already-torn-down stream.
func ctxCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// classifyError maps a raw OpenAI SDK error onto the provider failure
// taxonomy (§7).
func classifyError(provider string, err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &llm.AuthError{Provider: provider, Err: err}
		case http.StatusTooManyRequests:
			return &llm.RateLimitError{Provider: provider, Err: err}
		}
	}
	return &llm.TransportError{Provider: provider, Err: err}
}

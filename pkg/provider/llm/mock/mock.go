// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the orchestrator and prompt
// composer send correct ChatRequests and to feed controlled responses
// without a live LLM backend.
// All fields are safe to set before calling any method; mutating them
// during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    ChatResponses: []*llm.CompletedResponse{{Content: "Hello!"}},
//	}
//	resp, err := p.Chat(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// ChatCall records a single invocation of Chat.
type ChatCall struct {
	// Ctx is the context passed to Chat.
	Ctx context.Context
	// Req is the ChatRequest passed to Chat.
	Req llm.ChatRequest
}

// StreamCall records a single invocation of StreamChat.
type StreamCall struct {
	// Ctx is the context passed to StreamChat.
	Ctx context.Context
	// Req is the ChatRequest passed to StreamChat.
	Req llm.ChatRequest
}

// CountTokensCall records a single invocation of CountTokens.
type CountTokensCall struct {
	// Messages is the slice passed to CountTokens.
	Messages []llm.Message
}

// ResponseFunc computes a response for a given request, letting a test
// vary its answer by inspecting the composed prompt — used for S1's
// chunk-boundary propagation scenario, where chunk 2's response depends on
// whether chunk 2's system prompt already contains the entity the stub
// returned for chunk 1.
type ResponseFunc func(req llm.ChatRequest) (*llm.CompletedResponse, error)

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and
// nil errors. Set the Err fields to inject errors, or ChatFunc for
// request-dependent Chat behavior.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ChatResponses is consumed in order, one response per call to Chat;
	// the last entry is reused once exhausted. Ignored if ChatFunc is set.
	ChatResponses []*llm.CompletedResponse

	// ChatErr, if non-nil, is returned as the error from Chat.
	ChatErr error

	// ChatFunc, if set, computes the response for Chat instead of
	// consuming ChatResponses — used when a response must depend on the
	// request content (S1).
	ChatFunc ResponseFunc

	// StreamChunks is the sequence of StreamChunk values emitted on the
	// channel returned by StreamChat. All chunks are sent before the
	// channel is closed.
	StreamChunks []llm.StreamChunk

	// StreamErr, if non-nil, is returned as the error from StreamChat
	// instead of starting a channel.
	StreamErr error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from
	// CountTokens.
	CountTokensErr error

	// MaxCharsValue is returned by MaxChars.
	MaxCharsValue int

	// --- Call records (read after test) ---

	// ChatCalls records every invocation of Chat in order.
	ChatCalls []ChatCall

	// StreamCalls records every invocation of StreamChat in order.
	StreamCalls []StreamCall

	// CountTokensCalls records every invocation of CountTokens in order.
	CountTokensCalls []CountTokensCall
}

// Chat records the call and returns the next configured response.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.CompletedResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ChatCalls = append(p.ChatCalls, ChatCall{Ctx: ctx, Req: req})

	if p.ChatErr != nil {
		return nil, p.ChatErr
	}
	if p.ChatFunc != nil {
		return p.ChatFunc(req)
	}
	if len(p.ChatResponses) == 0 {
		return nil, nil
	}
	idx := len(p.ChatCalls) - 1
	if idx >= len(p.ChatResponses) {
		idx = len(p.ChatResponses) - 1
	}
	return p.ChatResponses[idx], nil
}

// StreamChat records the call and returns a channel that emits
// StreamChunks. If StreamErr is set, it returns nil, StreamErr without
// opening a channel.
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	p.mu.Lock()
	if p.StreamErr != nil {
		err := p.StreamErr
		p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([]llm.StreamChunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	p.mu.Unlock()

	ch := make(chan llm.StreamChunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	p.CountTokensCalls = append(p.CountTokensCalls, CountTokensCall{Messages: msgs})
	return p.TokenCount, p.CountTokensErr
}

// MaxChars returns MaxCharsValue.
func (p *Provider) MaxChars() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.MaxCharsValue
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ChatCalls = nil
	p.StreamCalls = nil
	p.CountTokensCalls = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

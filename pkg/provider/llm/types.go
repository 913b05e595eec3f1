package llm

// Role identifies the speaker of a [Message].
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in an LLM conversation history (§4.1).
type Message struct {
	Role    Role
	Content string
}

// ResponseFormat selects the output-shape contract a provider is asked to
// honor. JSONObject asks the provider to emit a single JSON object; the
// orchestrator relies on this for its chunk-response parsing (§4.6).
type ResponseFormat string

const (
	ResponseFormatUnset      ResponseFormat = ""
	ResponseFormatJSONObject ResponseFormat = "json_object"
)

// FinishReason is the normalized reason generation stopped, common to
// every provider (§4.1).
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength         FinishReason = "length"
	FinishContentFilter  FinishReason = "content_filter"
)

// Usage holds token accounting, normalized across providers (§4.1).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatRequest carries everything a provider needs to produce one
// completion (§4.1's chat operation).
type ChatRequest struct {
	// Messages is the ordered conversation history. Providers that lift a
	// leading system message out of the list (Anthropic, Gemini) do so
	// themselves from this slice — callers always pass a plain
	// system/user/assistant sequence.
	Messages []Message

	// Model names the model the caller asked for. The adapters in this
	// module ignore it and always send the model they were constructed
	// with by the registry (§6.4).
	Model string

	// Temperature controls output randomness. Default is provider-specific
	// when zero.
	Temperature float64

	// TopP is nucleus-sampling mass. Anthropic's adapter emits only one of
	// Temperature/TopP (§4.1) — TopP wins only when explicitly set via
	// [ChatRequest.UseTopP].
	TopP float64

	// UseTopP selects TopP over Temperature for providers that cannot emit
	// both in the same request (Anthropic). Ignored by providers that
	// accept both.
	UseTopP bool

	// MaxTokens caps completion length. Zero means the provider/model
	// default.
	MaxTokens int

	// ResponseFormat requests structured JSON output when set to
	// [ResponseFormatJSONObject].
	ResponseFormat ResponseFormat
}

// CompletedResponse is the normalized non-streaming result of a chat call
// (§4.1).
type CompletedResponse struct {
	Content      string
	FinishReason FinishReason
	Usage        Usage
}

// StreamChunk is a single normalized fragment of a streaming chat call
// (§4.1). Done is set on the terminal chunk; Delta may be empty on that
// chunk. The orchestrator buffers deltas into one string and parses once
// at the end (§9 design note), never incrementally.
type StreamChunk struct {
	Delta string
	Done  bool
}

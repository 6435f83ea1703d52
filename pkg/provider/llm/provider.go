// Package llm defines the provider abstraction for large language model
// completions used by the AI director for NPC dialog and decision making.
//
// Implementations live in subpackages:
//
//   - [github.com/veilgate/ludens/pkg/provider/llm/anyllm] routes to any of
//     the supported hosted or local backends through mozilla.ai's any-llm.
//   - [github.com/veilgate/ludens/pkg/provider/llm/mock] is a configurable
//     test double.
package llm

import "context"

// Usage reports token consumption for a completion.
type Usage struct {
	// PromptTokens is the number of tokens in the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated.
	CompletionTokens int

	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int
}

// CompletionRequest describes a single completion call.
type CompletionRequest struct {
	// Messages is the conversation history, oldest first.
	Messages []Message

	// Tools lists the tools the model may call. Empty means no tool calling.
	Tools []ToolDefinition

	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// SystemPrompt, when non-empty, is prepended as a system message.
	SystemPrompt string
}

// Chunk is one streamed fragment of a completion.
type Chunk struct {
	// Text is the incremental text content, possibly empty.
	Text string

	// FinishReason is non-empty on the final chunk ("stop", "tool_calls",
	// "length", ...).
	FinishReason string

	// ToolCalls carries completed tool invocations. Only set on the final
	// chunk, after streamed tool call fragments have been assembled.
	ToolCalls []ToolCall
}

// CompletionResponse is the result of a non-streaming completion.
type CompletionResponse struct {
	// Content is the generated text.
	Content string

	// ToolCalls lists any tool invocations the model requested.
	ToolCalls []ToolCall

	// Usage reports token consumption, when the backend provides it.
	Usage Usage
}

// Provider is the interface all LLM backends implement.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// StreamCompletion starts a streaming completion and returns a channel
	// of chunks. The channel is closed when the completion finishes or the
	// context is cancelled. Errors that occur mid-stream terminate the
	// stream; callers detect truncation via the missing FinishReason.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete performs a blocking, non-streaming completion.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// CountTokens estimates the token count of the given messages for this
	// provider's tokenizer. Estimates may be approximate.
	CountTokens(ctx context.Context, messages []Message) (int, error)

	// Capabilities reports what the configured model supports.
	Capabilities() ModelCapabilities
}

package resilience

import (
	"context"

	"github.com/veilgate/ludens/pkg/provider/llm"
)

// LLMChain implements [llm.Provider] with failover across several LLM
// backends. The director talks to it like any other provider; a dead
// primary just means slightly slower dialog, not silent NPCs.
type LLMChain struct {
	chain *Chain[llm.Provider]
}

var _ llm.Provider = (*LLMChain)(nil)

// NewLLMChain builds a chain with primary as the preferred backend.
func NewLLMChain(primaryName string, primary llm.Provider, cfg BreakerConfig) *LLMChain {
	return &LLMChain{chain: NewChain(primaryName, primary, cfg)}
}

// Add registers a fallback LLM backend.
func (f *LLMChain) Add(name string, p llm.Provider) {
	f.chain.Add(name, p)
}

// Complete runs the completion on the first healthy backend.
func (f *LLMChain) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	return DoResult(f.chain, func(p llm.Provider) (llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion opens a stream on the first healthy backend. Only the
// initial connection fails over; mid-stream errors reach the caller.
func (f *LLMChain) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return DoResult(f.chain, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

// CountTokens estimates with the first healthy backend's tokenizer.
func (f *LLMChain) CountTokens(ctx context.Context, messages []llm.Message) (int, error) {
	return DoResult(f.chain, func(p llm.Provider) (int, error) {
		return p.CountTokens(ctx, messages)
	})
}

// Capabilities reports the primary's capabilities. Static metadata does
// not fail over.
func (f *LLMChain) Capabilities() llm.ModelCapabilities {
	return f.chain.Primary().Capabilities()
}

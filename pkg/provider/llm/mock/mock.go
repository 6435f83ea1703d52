// Package mock provides a configurable test double for [llm.Provider].
package mock

import (
	"context"
	"sync"

	"github.com/veilgate/ludens/pkg/provider/llm"
)

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Provider is a test double for [llm.Provider]. Exported fields control what
// each method returns; every call is recorded for assertion. Safe for
// concurrent use.
type Provider struct {
	mu sync.Mutex

	// StreamChunks are sent on the channel returned by StreamCompletion,
	// then the channel is closed.
	StreamChunks []llm.Chunk

	// StreamErr is returned by StreamCompletion when non-nil.
	StreamErr error

	// CompleteResponse is returned by Complete.
	CompleteResponse llm.CompletionResponse

	// CompleteErr is returned by Complete when non-nil.
	CompleteErr error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// CountErr is returned by CountTokens when non-nil.
	CountErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// StreamCalls records every request passed to StreamCompletion.
	StreamCalls []llm.CompletionRequest

	// CompleteCalls records every request passed to Complete.
	CompleteCalls []llm.CompletionRequest
}

// StreamCompletion implements [llm.Provider].
func (m *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	m.mu.Lock()
	m.StreamCalls = append(m.StreamCalls, req)
	chunks := make([]llm.Chunk, len(m.StreamChunks))
	copy(chunks, m.StreamChunks)
	err := m.StreamErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements [llm.Provider].
func (m *Provider) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = append(m.CompleteCalls, req)
	if m.CompleteErr != nil {
		return llm.CompletionResponse{}, m.CompleteErr
	}
	return m.CompleteResponse, nil
}

// CountTokens implements [llm.Provider].
func (m *Provider) CountTokens(_ context.Context, messages []llm.Message) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	if m.TokenCount > 0 {
		return m.TokenCount, nil
	}
	total := 0
	for _, msg := range messages {
		total += len(msg.Content) / 4
	}
	return total, nil
}

// Capabilities implements [llm.Provider].
func (m *Provider) Capabilities() llm.ModelCapabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ModelCapabilities
}

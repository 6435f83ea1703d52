// Package mock provides a deterministic test double for
// [embeddings.Provider].
package mock

import (
	"context"
	"sync"

	"github.com/veilgate/ludens/pkg/provider/embeddings"
)

// Compile-time interface check.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a test double for [embeddings.Provider]. When Vectors is
// empty it produces a deterministic vector derived from the input text, so
// tests get stable but distinct embeddings without configuring anything.
type Provider struct {
	mu sync.Mutex

	// Vectors maps input text to the vector Embed returns for it. Inputs
	// not present fall back to the deterministic derivation.
	Vectors map[string][]float32

	// EmbedErr is returned by Embed and EmbedBatch when non-nil.
	EmbedErr error

	// Dim is the vector length reported and produced. Defaults to 8.
	Dim int

	// EmbedCalls records every text passed to Embed or EmbedBatch.
	EmbedCalls []string
}

func (m *Provider) dim() int {
	if m.Dim > 0 {
		return m.Dim
	}
	return 8
}

func (m *Provider) vectorFor(text string) []float32 {
	if v, ok := m.Vectors[text]; ok {
		return v
	}
	out := make([]float32, m.dim())
	for i, r := range text {
		out[i%len(out)] += float32(r) / 1000
	}
	return out
}

// Embed implements [embeddings.Provider].
func (m *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCalls = append(m.EmbedCalls, text)
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	return m.vectorFor(text), nil
}

// EmbedBatch implements [embeddings.Provider].
func (m *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCalls = append(m.EmbedCalls, texts...)
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

// Dimensions implements [embeddings.Provider].
func (m *Provider) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dim()
}

// ModelID implements [embeddings.Provider].
func (m *Provider) ModelID() string {
	return "mock-embedder"
}

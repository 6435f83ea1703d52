package resilience

import (
	"context"

	"github.com/veilgate/ludens/pkg/provider/embeddings"
)

// EmbeddingsChain implements [embeddings.Provider] with failover. All
// backends in one chain must produce vectors of the same dimensionality,
// or stored memory embeddings become unsearchable; the constructor does
// not verify this because remote backends report dimensions lazily.
type EmbeddingsChain struct {
	chain *Chain[embeddings.Provider]
}

var _ embeddings.Provider = (*EmbeddingsChain)(nil)

// NewEmbeddingsChain builds a chain with primary as the preferred backend.
func NewEmbeddingsChain(primaryName string, primary embeddings.Provider, cfg BreakerConfig) *EmbeddingsChain {
	return &EmbeddingsChain{chain: NewChain(primaryName, primary, cfg)}
}

// Add registers a fallback embeddings backend.
func (f *EmbeddingsChain) Add(name string, p embeddings.Provider) {
	f.chain.Add(name, p)
}

// Embed embeds one text on the first healthy backend.
func (f *EmbeddingsChain) Embed(ctx context.Context, text string) ([]float32, error) {
	return DoResult(f.chain, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch embeds texts on the first healthy backend.
func (f *EmbeddingsChain) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return DoResult(f.chain, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions reports the primary's vector width.
func (f *EmbeddingsChain) Dimensions() int {
	return f.chain.Primary().Dimensions()
}

// ModelID reports the primary's model identifier.
func (f *EmbeddingsChain) ModelID() string {
	return f.chain.Primary().ModelID()
}

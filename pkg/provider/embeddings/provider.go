// Package embeddings defines the provider abstraction for text embedding
// backends.
//
// The AI layer embeds NPC memories at write time and queries at recall time;
// the resulting vectors feed the pgvector-backed semantic index. Any backend
// that maps text to fixed-width float32 vectors can serve here.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over a text embedding backend.
//
// All vectors returned by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different providers or models must
// not be mixed in the same similarity computation.
type Provider interface {
	// Embed computes the embedding vector for a single text. The input is
	// passed to the model verbatim; callers apply any model-specific
	// formatting themselves.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds a slice of texts in one backend call. The returned
	// slice has the same length and order as texts. On error the whole
	// result is nil; partial results are never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length this provider produces.
	Dimensions() int

	// ModelID returns the backend model identifier, for logging and for
	// verifying that stored vectors match the configured model.
	ModelID() string
}

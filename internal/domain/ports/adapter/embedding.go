package adapter

import "context"

// EmbeddingMode selects the task type for asymmetric embedding models, which
// score documents and queries differently.
type EmbeddingMode string

const (
	EmbedDocument EmbeddingMode = "document"
	EmbedQuery    EmbeddingMode = "query"
)

// EmbeddingAdapter is the port for text embedding. When Enabled returns false
// callers must route through the lexical fallback instead of treating the
// absence as an error.
type EmbeddingAdapter interface {
	Enabled() bool
	Embed(ctx context.Context, text string, mode EmbeddingMode) ([]float32, error)
}

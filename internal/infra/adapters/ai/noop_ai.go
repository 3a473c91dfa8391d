package ai

import (
	"context"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
)

var _ adapter.VisionAnalysisAdapter = (*NoopVisionAdapter)(nil)
var _ adapter.EmbeddingAdapter = (*NoopEmbeddingAdapter)(nil)

// NoopVisionAdapter is the deterministic stand-in used when no AI provider is
// configured. It keeps the whole pipeline runnable in dev without credentials.
type NoopVisionAdapter struct{}

func NewNoopVisionAdapter() *NoopVisionAdapter { return &NoopVisionAdapter{} }

func (a *NoopVisionAdapter) ModelName() string { return "noop-vision" }

func (a *NoopVisionAdapter) Classify(ctx context.Context, image []byte, extraContext string) ([]model.Finding, error) {
	if len(image) == 0 {
		return nil, nil
	}
	return []model.Finding{{
		Label:      "possible_abnormality",
		Confidence: 0.42,
		ModelName:  "noop-vision",
	}}, nil
}

func (a *NoopVisionAdapter) Summarize(ctx context.Context, text string) (string, error) {
	return "", nil
}

// NoopEmbeddingAdapter reports embeddings as disabled, which routes every
// search through the lexical fallback.
type NoopEmbeddingAdapter struct{}

func NewNoopEmbeddingAdapter() *NoopEmbeddingAdapter { return &NoopEmbeddingAdapter{} }

func (a *NoopEmbeddingAdapter) Enabled() bool { return false }

func (a *NoopEmbeddingAdapter) Embed(ctx context.Context, text string, mode adapter.EmbeddingMode) ([]float32, error) {
	return nil, domain.ErrEmbeddingDisabled
}

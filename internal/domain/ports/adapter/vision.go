package adapter

import (
	"context"

	"mediview-ai-service/internal/domain/model"
)

// VisionAnalysisAdapter is the port for image classification and report
// summarization. Implementations normalize provider output into
// model.Finding at this boundary.
//
// Classify accepts an optional extraContext block; when non-empty it is
// injected into the instructions so a retrieval pass can steer a re-analysis.
// An empty finding slice is a valid result, not an error.
type VisionAnalysisAdapter interface {
	Classify(ctx context.Context, image []byte, extraContext string) ([]model.Finding, error)
	Summarize(ctx context.Context, text string) (string, error)
	ModelName() string
}

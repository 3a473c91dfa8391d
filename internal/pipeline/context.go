package pipeline

import (
	"context"

	"mediview-ai-service/internal/domain/model"
)

// ProgressFunc reports stage progress back to the executor. Values are
// clamped so progress never regresses and never reaches 100 before the
// executor's own completion step.
type ProgressFunc func(percent int, step string)

// Context is the shared mutable state a pipeline run threads through its
// stages. Stages run strictly sequentially; a stage sees every mutation made
// by the stages before it.
type Context struct {
	Job        *model.AnalysisJob
	Study      *model.Study
	Image      []byte
	ReportText string

	Findings     []model.Finding
	Summary      string
	SummaryModel string
}

// Stage is one discrete step of the analysis pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, pc *Context, report ProgressFunc) error
}

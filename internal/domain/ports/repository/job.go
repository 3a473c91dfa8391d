package repository

import (
	"context"

	"mediview-ai-service/internal/domain/model"
)

// JobRepository is the durable record store for analysis jobs. Exactly one
// writer (the executor running that job) exists per job id, so no locking is
// layered on top of the read-modify-commit cycle in Update.
type JobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.AnalysisJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AnalysisJob, error)
	// Update runs a read-modify-commit cycle: the current record is loaded,
	// passed to mutate, and saved back. Returns domain.ErrNotFound for an
	// unknown id.
	Update(ctx context.Context, id string, mutate func(job *model.AnalysisJob) error) (*model.AnalysisJob, error)
}

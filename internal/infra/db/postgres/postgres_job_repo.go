package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.AnalysisJob) error {
	const q = `
INSERT INTO analysis_jobs (id, type, status, progress, error, result, image_key, report_text, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	result, err := marshalResult(job.Result)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.Type, job.Status, job.Progress, job.Error, result, job.ImageKey, job.ReportText, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AnalysisJob, error) {
	const q = `
SELECT id, type, status, progress, error, result, image_key, report_text, created_at, updated_at
  FROM analysis_jobs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// Update runs a read-modify-commit cycle inside one transaction. Single
// writer per job id is an invariant supplied by the caller; the transaction
// only guards against partial writes.
func (r *jobRepo) Update(ctx context.Context, id string, mutate func(job *model.AnalysisJob) error) (*model.AnalysisJob, error) {
	var updated *model.AnalysisJob
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		job, err := r.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mutate(job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now()
		if err := r.save(ctx, tx, job); err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *jobRepo) save(ctx context.Context, tx repository.Tx, job *model.AnalysisJob) error {
	const q = `
UPDATE analysis_jobs
   SET status=$2, progress=$3, error=$4, result=$5, updated_at=$6
 WHERE id=$1;`
	result, err := marshalResult(job.Result)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, tx, q, job.ID, job.Status, job.Progress, job.Error, result, job.UpdatedAt)
	return err
}

func marshalResult(res *model.JobResult) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	return json.Marshal(res)
}

func scanJob(row pgx.Row) (*model.AnalysisJob, error) {
	var (
		job       model.AnalysisJob
		statusStr string
		result    []byte
	)
	err := row.Scan(&job.ID, &job.Type, &statusStr, &job.Progress, &job.Error, &result,
		&job.ImageKey, &job.ReportText, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = model.JobStatus(statusStr)
	if len(result) > 0 {
		var res model.JobResult
		if err := json.Unmarshal(result, &res); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		job.Result = &res
	}
	return &job, nil
}

package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/domain/ports/repository"
	"mediview-ai-service/internal/infra/worker"
	"mediview-ai-service/internal/pipeline"
)

var _ AnalysisUseCase = (*analysisUC)(nil)

// JobRunner executes the analysis pipeline for one job. Satisfied by
// pipeline.Executor.
type JobRunner interface {
	Run(ctx context.Context, jobID string)
}

// SyncResult is the response of a synchronous analysis: no job record, no
// persistence, just the normalized findings and a derived summary.
type SyncResult struct {
	Findings []model.Finding `json:"findings"`
	Summary  string          `json:"summary"`
	Model    string          `json:"model"`
}

type AnalysisUseCase interface {
	// Submit creates the job record and hands execution to the worker pool.
	// The returned job is in the queued state; callers track it by id.
	Submit(ctx context.Context, imageKey, reportText string) (*model.AnalysisJob, error)
	GetJob(ctx context.Context, id string) (*model.AnalysisJob, error)
	// Analyze classifies an in-memory image without creating a job. Provider
	// failures surface directly to the caller here, unlike the pipeline.
	Analyze(ctx context.Context, image []byte, reportText string) (*SyncResult, error)
	PresignUpload(ctx context.Context, key string) (string, error)

	GetStudy(ctx context.Context, id int64) (*model.Study, []model.Finding, []model.Report, error)
	ImageURL(ctx context.Context, key string) (string, error)
}

type analysisUC struct {
	jobs      repository.JobRepository
	studies   repository.StudyRepository
	storage   adapter.ObjectStorageAdapter
	vision    adapter.VisionAnalysisAdapter
	runner    JobRunner
	pool      *worker.Pool
	threshold float64
	log       *zerolog.Logger
}

func NewAnalysisUseCase(
	jobs repository.JobRepository,
	studies repository.StudyRepository,
	storage adapter.ObjectStorageAdapter,
	vision adapter.VisionAnalysisAdapter,
	runner JobRunner,
	pool *worker.Pool,
	threshold float64,
	log *zerolog.Logger,
) *analysisUC {
	return &analysisUC{
		jobs:      jobs,
		studies:   studies,
		storage:   storage,
		vision:    vision,
		runner:    runner,
		pool:      pool,
		threshold: threshold,
		log:       log,
	}
}

func (u *analysisUC) Submit(ctx context.Context, imageKey, reportText string) (*model.AnalysisJob, error) {
	if imageKey == "" {
		return nil, fmt.Errorf("%w: image key is required", domain.ErrInvalidArgument)
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	job := model.NewAnalysisJob(id, imageKey, reportText)
	if err := u.jobs.Create(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := u.pool.Submit(func(workerCtx context.Context) error {
		u.runner.Run(workerCtx, id)
		return nil
	}); err != nil {
		u.log.Error().Err(err).Str("job_id", id).Msg("worker pool rejected job")
		if _, ferr := u.jobs.Update(ctx, id, func(j *model.AnalysisJob) error {
			j.Fail("worker queue full")
			return nil
		}); ferr != nil {
			u.log.Error().Err(ferr).Str("job_id", id).Msg("failed to mark rejected job failed")
		}
		return nil, fmt.Errorf("submit job: %w", err)
	}

	u.log.Info().Str("job_id", id).Str("image_key", imageKey).Msg("analysis job queued")
	return job, nil
}

func (u *analysisUC) GetJob(ctx context.Context, id string) (*model.AnalysisJob, error) {
	return u.jobs.FindByID(ctx, nil, id)
}

func (u *analysisUC) Analyze(ctx context.Context, image []byte, reportText string) (*SyncResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image payload is empty", domain.ErrInvalidArgument)
	}

	findings, err := u.vision.Classify(ctx, image, "")
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	summary := ""
	if reportText != "" {
		summary, err = u.vision.Summarize(ctx, reportText)
		if err != nil {
			u.log.Warn().Err(err).Msg("summarization failed in synchronous analysis")
			summary = ""
		}
	}
	if summary == "" {
		summary = pipeline.FindingsSummary(findings, u.threshold)
	}

	return &SyncResult{Findings: findings, Summary: summary, Model: u.vision.ModelName()}, nil
}

func (u *analysisUC) PresignUpload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: object key is required", domain.ErrInvalidArgument)
	}
	return u.storage.PresignPut(ctx, key, 15*time.Minute)
}

func (u *analysisUC) GetStudy(ctx context.Context, id int64) (*model.Study, []model.Finding, []model.Report, error) {
	study, err := u.studies.FindStudyByID(ctx, nil, id)
	if err != nil {
		return nil, nil, nil, err
	}
	findings, err := u.studies.ListFindings(ctx, nil, id)
	if err != nil {
		return nil, nil, nil, err
	}
	reports, err := u.studies.ListReports(ctx, nil, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return study, findings, reports, nil
}

func (u *analysisUC) ImageURL(ctx context.Context, key string) (string, error) {
	return u.storage.PresignGet(ctx, key, 1*time.Hour)
}

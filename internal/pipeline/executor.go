package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/domain/ports/repository"
	"mediview-ai-service/internal/infra/metrics"
)

// Progress allocation: 0-5% is executor setup, 5-95% is divided evenly across
// the stages (stage i of N completing lands at 5 + i*90/N), 95-100% is final
// result commitment.
const (
	setupProgress  = 5
	stagesSpan     = 90
	commitProgress = 95
)

// Executor runs the analysis pipeline for one job at a time. It owns all
// writes to the job record; every stage failure is caught here and converted
// to a failed job state, never a crash. Progress events are handed to the
// broadcaster best-effort.
type Executor struct {
	jobs        repository.JobRepository
	studies     repository.StudyRepository
	storage     adapter.ObjectStorageAdapter
	broadcaster adapter.ProgressBroadcaster // nil when no broadcast transport is configured
	stages      []Stage
	log         *zerolog.Logger
}

func NewExecutor(
	jobs repository.JobRepository,
	studies repository.StudyRepository,
	storage adapter.ObjectStorageAdapter,
	broadcaster adapter.ProgressBroadcaster,
	stages []Stage,
	log *zerolog.Logger,
) *Executor {
	return &Executor{
		jobs:        jobs,
		studies:     studies,
		storage:     storage,
		broadcaster: broadcaster,
		stages:      stages,
		log:         log,
	}
}

// Run executes the pipeline for jobID. It never returns an error: every
// failure path ends in a failed job record instead.
func (e *Executor) Run(ctx context.Context, jobID string) {
	metrics.JobStarted()
	defer metrics.JobFinished()

	start := time.Now()
	job, err := e.jobs.Update(ctx, jobID, func(j *model.AnalysisJob) error {
		if j.Status.Terminal() {
			return domain.ErrJobTerminal
		}
		j.Start()
		j.ReportProgress(setupProgress)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrJobTerminal) {
			e.log.Warn().Err(err).Str("job_id", jobID).Msg("job not runnable")
			return
		}
		e.log.Error().Err(err).Str("job_id", jobID).Msg("failed to start job")
		return
	}
	e.publish(ctx, model.SnapshotEvent(job, "starting"))

	study := &model.Study{PatientID: "unknown", Modality: "unknown", ImageKey: job.ImageKey}
	if err := e.studies.CreateStudy(ctx, nil, study); err != nil {
		e.failJob(ctx, jobID, fmt.Sprintf("create study: %v", err))
		return
	}

	image, err := e.storage.GetObjectBytes(ctx, job.ImageKey)
	if err != nil {
		e.failJob(ctx, jobID, fmt.Sprintf("load image %s: %v", job.ImageKey, err))
		return
	}

	pc := &Context{
		Job:        job,
		Study:      study,
		Image:      image,
		ReportText: job.ReportText,
	}

	report := func(percent int, step string) {
		updated, err := e.jobs.Update(ctx, jobID, func(j *model.AnalysisJob) error {
			j.ReportProgress(percent)
			return nil
		})
		if err != nil {
			e.log.Warn().Err(err).Str("job_id", jobID).Msg("progress commit failed")
			return
		}
		e.publish(ctx, model.SnapshotEvent(updated, step))
	}
	report(setupProgress, "loaded")

	n := len(e.stages)
	for i, stage := range e.stages {
		stageStart := time.Now()
		err := stage.Run(ctx, pc, report)
		metrics.ObserveStageDuration(stage.Name(), time.Since(stageStart).Seconds())
		if err != nil {
			e.log.Error().Err(err).Str("job_id", jobID).Str("stage", stage.Name()).Msg("stage failed")
			e.failJob(ctx, jobID, fmt.Sprintf("stage %s: %v", stage.Name(), err))
			return
		}
		report(setupProgress+(i+1)*stagesSpan/n, fmt.Sprintf("stage:%s:done", stage.Name()))
	}

	report(commitProgress, "committing")
	result := &model.JobResult{
		StudyID:     study.ID,
		NumFindings: len(pc.Findings),
		ImageKey:    job.ImageKey,
	}
	completed, err := e.jobs.Update(ctx, jobID, func(j *model.AnalysisJob) error {
		j.Complete(result)
		return nil
	})
	if err != nil {
		e.failJob(ctx, jobID, fmt.Sprintf("commit result: %v", err))
		return
	}

	metrics.IncJob(string(model.JobStatusCompleted))
	e.publish(ctx, model.SnapshotEvent(completed, "completed"))
	e.log.Info().Str("job_id", jobID).Int64("study_id", study.ID).
		Int("findings", result.NumFindings).Dur("duration", time.Since(start)).Msg("job completed")
}

// failJob marks the job failed with the captured message. The final update
// uses a background context so a cancelled run context cannot lose the
// terminal state.
func (e *Executor) failJob(ctx context.Context, jobID, msg string) {
	failed, err := e.jobs.Update(context.Background(), jobID, func(j *model.AnalysisJob) error {
		j.Fail(msg)
		return nil
	})
	if err != nil {
		e.log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
		return
	}
	metrics.IncJob(string(model.JobStatusFailed))
	e.publish(ctx, model.SnapshotEvent(failed, "failed"))
	e.log.Warn().Str("job_id", jobID).Str("error", msg).Msg("job failed")
}

func (e *Executor) publish(ctx context.Context, ev model.ProgressEvent) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Publish(ctx, ev)
}

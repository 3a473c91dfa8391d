package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/domain/ports/repository"
)

var _ StreamUseCase = (*streamUC)(nil)

// EmitFunc delivers one event to the connected client. A non-nil error means
// the client is gone and the stream should stop.
type EmitFunc func(event model.ProgressEvent) error

// StreamUseCase feeds a client live progress for one job. It prefers the
// broadcast channel and falls back to polling the job record when no
// broadcast transport is configured.
type StreamUseCase interface {
	Stream(ctx context.Context, jobID string, emit EmitFunc) error
}

type streamUC struct {
	jobs         repository.JobRepository
	broadcaster  adapter.ProgressBroadcaster // nil selects poll mode
	pollInterval time.Duration
	log          *zerolog.Logger
}

func NewStreamUseCase(jobs repository.JobRepository, broadcaster adapter.ProgressBroadcaster, pollInterval time.Duration, log *zerolog.Logger) *streamUC {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &streamUC{jobs: jobs, broadcaster: broadcaster, pollInterval: pollInterval, log: log}
}

// Stream emits an initial snapshot, then live updates until the job reaches a
// terminal state or ctx is cancelled. Returns domain.ErrNotFound when the job
// id is unknown.
func (u *streamUC) Stream(ctx context.Context, jobID string, emit EmitFunc) error {
	job, err := u.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return err
	}

	snapshot := model.SnapshotEvent(job, "connected")
	if err := emit(snapshot); err != nil {
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}

	if u.broadcaster != nil {
		return u.streamPush(ctx, jobID, snapshot, emit)
	}
	return u.streamPoll(ctx, jobID, snapshot, emit)
}

// streamPush forwards broadcast events. A subscription failure degrades to
// polling so a flaky transport never breaks the stream. Publishes are
// best-effort and the subscription starts after the initial snapshot, so the
// terminal event may never arrive on the channel; a ticker re-reads the job
// record to guarantee the stream still ends when the job does.
func (u *streamUC) streamPush(ctx context.Context, jobID string, last model.ProgressEvent, emit EmitFunc) error {
	events, cancel, err := u.broadcaster.Subscribe(ctx, jobID)
	if err != nil {
		u.log.Warn().Err(err).Str("job_id", jobID).Msg("subscribe failed, falling back to polling")
		return u.streamPoll(ctx, jobID, last, emit)
	}
	defer cancel()

	ticker := time.NewTicker(u.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				// Channel closed under us; the poll path picks up from the
				// last delivered state.
				return u.streamPoll(ctx, jobID, last, emit)
			}
			if err := emit(ev); err != nil {
				return nil
			}
			last = ev
			if ev.Status.Terminal() {
				return nil
			}
		case <-ticker.C:
			job, err := u.jobs.FindByID(ctx, nil, jobID)
			if err != nil {
				return err
			}
			if !job.Status.Terminal() {
				continue
			}
			ev := model.SnapshotEvent(job, "progress")
			if ev.Status != last.Status || ev.Progress != last.Progress {
				if err := emit(ev); err != nil {
					return nil
				}
			}
			return nil
		}
	}
}

// streamPoll re-reads the job record on a fixed interval and emits only when
// the observed state differs from the last event delivered.
func (u *streamUC) streamPoll(ctx context.Context, jobID string, last model.ProgressEvent, emit EmitFunc) error {
	ticker := time.NewTicker(u.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			job, err := u.jobs.FindByID(ctx, nil, jobID)
			if err != nil {
				return err
			}
			ev := model.SnapshotEvent(job, "progress")
			if ev.Status == last.Status && ev.Progress == last.Progress {
				continue
			}
			if err := emit(ev); err != nil {
				return nil
			}
			last = ev
			if ev.Status.Terminal() {
				return nil
			}
		}
	}
}

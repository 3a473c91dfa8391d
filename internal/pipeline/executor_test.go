//go:build !integration

package pipeline

import (
	"context"
	"errors"
	"testing"

	"mediview-ai-service/internal/domain/model"
)

type scriptedStage struct {
	name string
	run  func(ctx context.Context, pc *Context, report ProgressFunc) error
}

func (s *scriptedStage) Name() string { return s.name }

func (s *scriptedStage) Run(ctx context.Context, pc *Context, report ProgressFunc) error {
	if s.run == nil {
		return nil
	}
	return s.run(ctx, pc, report)
}

func executorFixture(jobs *memJobRepo, stages ...Stage) (*Executor, *memStudyRepo, *capturingBroadcaster) {
	studies := newMemStudyRepo()
	storage := &memStorage{objects: map[string][]byte{"img.png": []byte("png-bytes")}}
	bc := &capturingBroadcaster{}
	return NewExecutor(jobs, studies, storage, bc, stages, testLogger()), studies, bc
}

func TestExecutorHappyPath(t *testing.T) {
	job := model.NewAnalysisJob("job-1", "img.png", "")
	jobs := newMemJobRepo(job)

	classify := &scriptedStage{name: "classify", run: func(ctx context.Context, pc *Context, report ProgressFunc) error {
		pc.Findings = []model.Finding{{Label: "nodule", Confidence: 0.8}}
		report(30, "classified")
		return nil
	}}
	summarize := &scriptedStage{name: "summarize", run: func(ctx context.Context, pc *Context, report ProgressFunc) error {
		pc.Summary = "Key findings: nodule. Further clinical correlation recommended."
		return nil
	}}
	persist := &scriptedStage{name: "persist"}

	exec, _, bc := executorFixture(jobs, classify, summarize, persist)
	exec.Run(context.Background(), "job-1")

	final, err := jobs.FindByID(context.Background(), nil, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != model.JobStatusCompleted || final.Progress != 100 {
		t.Fatalf("expected completed at 100, got %s/%d", final.Status, final.Progress)
	}
	if final.Result == nil || final.Result.NumFindings != 1 || final.Result.ImageKey != "img.png" || final.Result.StudyID != 1 {
		t.Errorf("unexpected result payload: %+v", final.Result)
	}

	// Progress as committed must never regress and must pass the stage
	// boundaries: 3 stages give 35, 65, 95.
	history := jobs.progressHistory()
	prev := -1
	for _, p := range history {
		if p < prev {
			t.Fatalf("progress regressed: %v", history)
		}
		prev = p
	}
	for _, boundary := range []int{5, 35, 65, 95, 100} {
		if !containsInt(history, boundary) {
			t.Errorf("expected progress %d in history %v", boundary, history)
		}
	}

	events := bc.published()
	if len(events) == 0 {
		t.Fatal("expected broadcast events")
	}
	last := events[len(events)-1]
	if last.Status != model.JobStatusCompleted || last.Step != "completed" || last.Result == nil {
		t.Errorf("unexpected final event: %+v", last)
	}
}

func TestExecutorUnknownJobIsNoop(t *testing.T) {
	jobs := newMemJobRepo()
	exec, _, bc := executorFixture(jobs)

	exec.Run(context.Background(), "missing")

	if len(bc.published()) != 0 {
		t.Error("expected no events for an unknown job")
	}
}

func TestExecutorSkipsTerminalJob(t *testing.T) {
	job := model.NewAnalysisJob("job-1", "img.png", "")
	job.Start()
	job.Complete(&model.JobResult{StudyID: 42})
	jobs := newMemJobRepo(job)

	exec, _, _ := executorFixture(jobs, &scriptedStage{name: "classify", run: func(context.Context, *Context, ProgressFunc) error {
		t.Error("stage must not run for a terminal job")
		return nil
	}})
	exec.Run(context.Background(), "job-1")

	final, _ := jobs.FindByID(context.Background(), nil, "job-1")
	if final.Result == nil || final.Result.StudyID != 42 {
		t.Errorf("terminal job was mutated: %+v", final)
	}
}

func TestExecutorFailsJobWhenImageMissing(t *testing.T) {
	job := model.NewAnalysisJob("job-1", "gone.png", "")
	jobs := newMemJobRepo(job)

	exec, _, bc := executorFixture(jobs)
	exec.Run(context.Background(), "job-1")

	final, _ := jobs.FindByID(context.Background(), nil, "job-1")
	if final.Status != model.JobStatusFailed || final.Error == "" {
		t.Fatalf("expected failed job with captured error, got %+v", final)
	}
	if final.Progress == 100 {
		t.Error("failed job must not report full progress")
	}

	events := bc.published()
	if len(events) == 0 || events[len(events)-1].Status != model.JobStatusFailed {
		t.Errorf("expected a failed event, got %+v", events)
	}
}

func TestExecutorFailsJobOnStageError(t *testing.T) {
	job := model.NewAnalysisJob("job-1", "img.png", "")
	jobs := newMemJobRepo(job)

	boom := &scriptedStage{name: "persist", run: func(context.Context, *Context, ProgressFunc) error {
		return errors.New("db down")
	}}
	exec, _, _ := executorFixture(jobs, boom)
	exec.Run(context.Background(), "job-1")

	final, _ := jobs.FindByID(context.Background(), nil, "job-1")
	if final.Status != model.JobStatusFailed {
		t.Fatalf("expected failed status, got %s", final.Status)
	}
	if final.Error != "stage persist: db down" {
		t.Errorf("unexpected error message: %q", final.Error)
	}
}

func TestExecutorRunsWithoutBroadcaster(t *testing.T) {
	job := model.NewAnalysisJob("job-1", "img.png", "")
	jobs := newMemJobRepo(job)
	studies := newMemStudyRepo()
	storage := &memStorage{objects: map[string][]byte{"img.png": []byte("png-bytes")}}

	exec := NewExecutor(jobs, studies, storage, nil, []Stage{&scriptedStage{name: "classify"}}, testLogger())
	exec.Run(context.Background(), "job-1")

	final, _ := jobs.FindByID(context.Background(), nil, "job-1")
	if final.Status != model.JobStatusCompleted {
		t.Errorf("expected completion without a broadcaster, got %s", final.Status)
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

package model

import "time"

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether a job in this status may never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobResult is the payload stored on successful completion.
type JobResult struct {
	StudyID     int64  `json:"study_id"`
	NumFindings int    `json:"num_findings"`
	ImageKey    string `json:"image_key"`
}

// AnalysisJob tracks one background analysis run. The job record is the only
// shared state between the submission path and the worker: status, progress,
// error and result live here and nowhere else.
type AnalysisJob struct {
	ID         string
	Type       string
	Status     JobStatus
	Progress   int
	Error      string
	Result     *JobResult
	ImageKey   string
	ReportText string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewAnalysisJob(id, imageKey, reportText string) *AnalysisJob {
	now := time.Now()
	return &AnalysisJob{
		ID:         id,
		Type:       "analyze",
		Status:     JobStatusQueued,
		Progress:   0,
		ImageKey:   imageKey,
		ReportText: reportText,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Start moves the job into the running state. No-op if already terminal.
func (j *AnalysisJob) Start() {
	if j.Status.Terminal() {
		return
	}
	j.Status = JobStatusRunning
	j.UpdatedAt = time.Now()
}

// ReportProgress clamps the requested percent so progress never regresses and
// never reaches 100 before Complete.
func (j *AnalysisJob) ReportProgress(percent int) {
	if j.Status.Terminal() {
		return
	}
	if percent > 99 {
		percent = 99
	}
	if percent > j.Progress {
		j.Progress = percent
	}
	j.UpdatedAt = time.Now()
}

func (j *AnalysisJob) Complete(result *JobResult) {
	if j.Status.Terminal() {
		return
	}
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Result = result
	j.UpdatedAt = time.Now()
}

func (j *AnalysisJob) Fail(msg string) {
	if j.Status.Terminal() {
		return
	}
	j.Status = JobStatusFailed
	j.Error = msg
	j.UpdatedAt = time.Now()
}

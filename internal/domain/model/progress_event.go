package model

// ProgressEvent is the ephemeral message published on a job's broadcast
// channel. It carries a full snapshot of the job so a subscriber can act on
// any single event without replay.
type ProgressEvent struct {
	JobID    string     `json:"job_id"`
	Status   JobStatus  `json:"status"`
	Progress int        `json:"progress"`
	Step     string     `json:"step,omitempty"`
	Error    string     `json:"error,omitempty"`
	Result   *JobResult `json:"result,omitempty"`
}

// SnapshotEvent builds a ProgressEvent from the job's current state.
func SnapshotEvent(j *AnalysisJob, step string) ProgressEvent {
	return ProgressEvent{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Step:     step,
		Error:    j.Error,
		Result:   j.Result,
	}
}

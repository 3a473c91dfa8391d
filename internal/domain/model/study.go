package model

import "time"

// Study is the subject entity an analysis run produces records for.
type Study struct {
	ID        int64
	PatientID string
	Modality  string
	ImageKey  string
	CreatedAt time.Time
}

// Report is a textual report attached to a study, either the submitted
// original or a generated summary.
type Report struct {
	ID           int64
	StudyID      int64
	JobID        string
	Text         string
	SummaryModel string
	CreatedAt    time.Time
}

package repository

import (
	"context"

	"mediview-ai-service/internal/domain/model"
)

// StudyRepository persists studies and their analysis output.
type StudyRepository interface {
	CreateStudy(ctx context.Context, tx Tx, study *model.Study) error
	FindStudyByID(ctx context.Context, tx Tx, id int64) (*model.Study, error)

	// ReplaceFindings deletes any findings previously written for jobID and
	// inserts the given set, all in one transaction. Re-running the persist
	// stage for the same job therefore never duplicates rows.
	ReplaceFindings(ctx context.Context, studyID int64, jobID string, findings []model.Finding) error
	ListFindings(ctx context.Context, tx Tx, studyID int64) ([]model.Finding, error)

	// UpsertReport writes the report row keyed by (study, job); a retry
	// overwrites rather than duplicates.
	UpsertReport(ctx context.Context, tx Tx, report *model.Report) error
	ListReports(ctx context.Context, tx Tx, studyID int64) ([]model.Report, error)
}

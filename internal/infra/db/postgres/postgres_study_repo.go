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

var _ repository.StudyRepository = (*studyRepo)(nil)

type studyRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewStudyRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *studyRepo {
	return &studyRepo{pool: pool, tm: tm}
}

func (r *studyRepo) CreateStudy(ctx context.Context, tx repository.Tx, study *model.Study) error {
	const q = `
INSERT INTO studies (patient_id, modality, image_key, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id;`
	if study.CreatedAt.IsZero() {
		study.CreatedAt = time.Now()
	}
	row, err := pickRow(ctx, r.pool, tx, q, study.PatientID, study.Modality, study.ImageKey, study.CreatedAt)
	if err != nil {
		return err
	}
	return row.Scan(&study.ID)
}

func (r *studyRepo) FindStudyByID(ctx context.Context, tx repository.Tx, id int64) (*model.Study, error) {
	const q = `
SELECT id, patient_id, modality, image_key, created_at FROM studies WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var s model.Study
	if err := row.Scan(&s.ID, &s.PatientID, &s.Modality, &s.ImageKey, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ReplaceFindings keeps the persist stage idempotent: a retry for the same job
// wipes its own previous rows before inserting, all inside one transaction.
func (r *studyRepo) ReplaceFindings(ctx context.Context, studyID int64, jobID string, findings []model.Finding) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := execSQL(ctx, r.pool, tx,
			`DELETE FROM findings WHERE study_id=$1 AND job_id=$2;`, studyID, jobID); err != nil {
			return err
		}
		const ins = `
INSERT INTO findings (study_id, job_id, label, confidence, bbox, model_name, model_version, extra)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
		for i := range findings {
			f := &findings[i]
			bbox, err := marshalJSON(f.BBox)
			if err != nil {
				return err
			}
			extra, err := marshalJSON(f.Extra)
			if err != nil {
				return err
			}
			if _, err := execSQL(ctx, r.pool, tx, ins,
				studyID, jobID, f.Label, f.Confidence, bbox, f.ModelName, f.ModelVersion, extra); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *studyRepo) ListFindings(ctx context.Context, tx repository.Tx, studyID int64) ([]model.Finding, error) {
	const q = `
SELECT id, study_id, label, confidence, bbox, model_name, model_version, extra
  FROM findings WHERE study_id=$1 ORDER BY id;`
	rows, err := pickRows(ctx, r.pool, tx, q, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Finding
	for rows.Next() {
		var (
			f     model.Finding
			bbox  []byte
			extra []byte
		)
		if err := rows.Scan(&f.ID, &f.StudyID, &f.Label, &f.Confidence, &bbox, &f.ModelName, &f.ModelVersion, &extra); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(bbox) > 0 {
			var b model.BoundingBox
			if err := json.Unmarshal(bbox, &b); err == nil {
				f.BBox = &b
			}
		}
		if len(extra) > 0 {
			_ = json.Unmarshal(extra, &f.Extra)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *studyRepo) UpsertReport(ctx context.Context, tx repository.Tx, report *model.Report) error {
	const q = `
INSERT INTO reports (study_id, job_id, text, summary_model, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (study_id, job_id) DO UPDATE SET
  text = EXCLUDED.text,
  summary_model = EXCLUDED.summary_model;`
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		report.StudyID, report.JobID, report.Text, report.SummaryModel, report.CreatedAt)
	return err
}

func (r *studyRepo) ListReports(ctx context.Context, tx repository.Tx, studyID int64) ([]model.Report, error) {
	const q = `
SELECT id, study_id, job_id, text, summary_model, created_at
  FROM reports WHERE study_id=$1 ORDER BY id;`
	rows, err := pickRows(ctx, r.pool, tx, q, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		var rep model.Report
		if err := rows.Scan(&rep.ID, &rep.StudyID, &rep.JobID, &rep.Text, &rep.SummaryModel, &rep.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func marshalJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *model.BoundingBox:
		if t == nil {
			return nil, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

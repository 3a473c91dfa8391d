//go:build !integration

package web

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/usecase"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type stubAnalysisUC struct {
	mu   sync.Mutex
	jobs map[string]*model.AnalysisJob

	submitErr  error
	analyzeRes *usecase.SyncResult
	analyzeErr error

	study    *model.Study
	findings []model.Finding
	reports  []model.Report
}

func newStubAnalysisUC() *stubAnalysisUC {
	return &stubAnalysisUC{jobs: make(map[string]*model.AnalysisJob)}
}

func (s *stubAnalysisUC) Submit(ctx context.Context, imageKey, reportText string) (*model.AnalysisJob, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if imageKey == "" {
		return nil, domain.ErrInvalidArgument
	}
	job := model.NewAnalysisJob("job-test", imageKey, reportText)
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job, nil
}

func (s *stubAnalysisUC) GetJob(ctx context.Context, id string) (*model.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (s *stubAnalysisUC) Analyze(ctx context.Context, image []byte, reportText string) (*usecase.SyncResult, error) {
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	return s.analyzeRes, nil
}

func (s *stubAnalysisUC) PresignUpload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", domain.ErrInvalidArgument
	}
	return "https://storage.local/put/" + key, nil
}

func (s *stubAnalysisUC) GetStudy(ctx context.Context, id int64) (*model.Study, []model.Finding, []model.Report, error) {
	if s.study == nil || s.study.ID != id {
		return nil, nil, nil, domain.ErrNotFound
	}
	return s.study, s.findings, s.reports, nil
}

func (s *stubAnalysisUC) ImageURL(ctx context.Context, key string) (string, error) {
	return "https://storage.local/get/" + key, nil
}

type stubKnowledgeUC struct {
	docs      []model.KnowledgeDocument
	searchRes []model.KnowledgeDocument
	addErr    error
}

func (s *stubKnowledgeUC) AddDocument(ctx context.Context, title, content, source, docType string, metadata map[string]any) (*model.KnowledgeDocument, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	doc := model.KnowledgeDocument{ID: int64(len(s.docs) + 1), Title: title, Content: content, Source: source, DocType: docType, Metadata: metadata}
	s.docs = append(s.docs, doc)
	return &doc, nil
}

func (s *stubKnowledgeUC) Search(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error) {
	return s.searchRes, nil
}

func (s *stubKnowledgeUC) Get(ctx context.Context, id int64) (*model.KnowledgeDocument, error) {
	for i := range s.docs {
		if s.docs[i].ID == id {
			return &s.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubKnowledgeUC) Delete(ctx context.Context, id int64) error {
	for i := range s.docs {
		if s.docs[i].ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *stubKnowledgeUC) List(ctx context.Context, limit, offset int) ([]model.KnowledgeDocument, error) {
	return s.docs, nil
}

func (s *stubKnowledgeUC) Stats(ctx context.Context) (int64, []string, error) {
	return int64(len(s.docs)), []string{"test"}, nil
}

type stubStreamUC struct {
	events []model.ProgressEvent
	err    error
}

func (s *stubStreamUC) Stream(ctx context.Context, jobID string, emit usecase.EmitFunc) error {
	if s.err != nil {
		return s.err
	}
	for _, ev := range s.events {
		if err := emit(ev); err != nil {
			return nil
		}
	}
	return nil
}

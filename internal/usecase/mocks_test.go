//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/domain/ports/repository"
)

// In-memory fakes shared by the use case tests.

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.AnalysisJob

	createErr error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*model.AnalysisJob)}
}

func (r *fakeJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.AnalysisJob) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *fakeJobRepo) Update(ctx context.Context, id string, mutate func(job *model.AnalysisJob) error) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	cp := *job
	return &cp, nil
}

type fakeDocRepo struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]*model.KnowledgeDocument

	saveErr    error
	vectorErr  error
	lexicalErr error

	vectorCalls  int
	lexicalCalls int
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[int64]*model.KnowledgeDocument)}
}

func (r *fakeDocRepo) Save(ctx context.Context, tx repository.Tx, doc *model.KnowledgeDocument) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	doc.CreatedAt = time.Now()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.KnowledgeDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDocRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *fakeDocRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]model.KnowledgeDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.KnowledgeDocument
	for id := int64(1); id <= r.nextID; id++ {
		if doc, ok := r.docs[id]; ok {
			out = append(out, *doc)
		}
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDocRepo) Count(ctx context.Context, tx repository.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.docs)), nil
}

func (r *fakeDocRepo) SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]model.KnowledgeDocument, error) {
	r.vectorCalls++
	if r.vectorErr != nil {
		return nil, r.vectorErr
	}
	return r.List(ctx, nil, limit, 0)
}

func (r *fakeDocRepo) SearchLexical(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error) {
	r.lexicalCalls++
	if r.lexicalErr != nil {
		return nil, r.lexicalErr
	}
	return r.List(ctx, nil, limit, 0)
}

type fakeEmbedder struct {
	enabled  bool
	embedErr error

	lastText string
	lastMode adapter.EmbeddingMode
}

func (e *fakeEmbedder) Enabled() bool { return e.enabled }

func (e *fakeEmbedder) Embed(ctx context.Context, text string, mode adapter.EmbeddingMode) ([]float32, error) {
	e.lastText = text
	e.lastMode = mode
	if e.embedErr != nil {
		return nil, e.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeVision struct {
	findings     []model.Finding
	classifyErr  error
	summary      string
	summarizeErr error
}

func (v *fakeVision) Classify(ctx context.Context, image []byte, extraContext string) ([]model.Finding, error) {
	if v.classifyErr != nil {
		return nil, v.classifyErr
	}
	return v.findings, nil
}

func (v *fakeVision) Summarize(ctx context.Context, text string) (string, error) {
	if v.summarizeErr != nil {
		return "", v.summarizeErr
	}
	return v.summary, nil
}

func (v *fakeVision) ModelName() string { return "fake-vision" }

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) GetObjectBytes(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *fakeStorage) PutObjectBytes(ctx context.Context, key string, data []byte, contentType string) error {
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.local/put/" + key, nil
}

func (s *fakeStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.local/get/" + key, nil
}

type fakeStudyRepo struct {
	mu       sync.Mutex
	nextID   int64
	studies  map[int64]*model.Study
	findings map[string][]model.Finding // keyed by "studyID/jobID"
	reports  map[int64][]model.Report
}

func newFakeStudyRepo() *fakeStudyRepo {
	return &fakeStudyRepo{
		studies:  make(map[int64]*model.Study),
		findings: make(map[string][]model.Finding),
		reports:  make(map[int64][]model.Report),
	}
}

func (r *fakeStudyRepo) CreateStudy(ctx context.Context, tx repository.Tx, study *model.Study) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	study.ID = r.nextID
	study.CreatedAt = time.Now()
	cp := *study
	r.studies[study.ID] = &cp
	return nil
}

func (r *fakeStudyRepo) FindStudyByID(ctx context.Context, tx repository.Tx, id int64) (*model.Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	study, ok := r.studies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *study
	return &cp, nil
}

func (r *fakeStudyRepo) ReplaceFindings(ctx context.Context, studyID int64, jobID string, findings []model.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings[fmt.Sprintf("%d/%s", studyID, jobID)] = append([]model.Finding(nil), findings...)
	return nil
}

func (r *fakeStudyRepo) ListFindings(ctx context.Context, tx repository.Tx, studyID int64) ([]model.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := fmt.Sprintf("%d/", studyID)
	var out []model.Finding
	for key, fs := range r.findings {
		if strings.HasPrefix(key, prefix) {
			out = append(out, fs...)
		}
	}
	return out, nil
}

func (r *fakeStudyRepo) UpsertReport(ctx context.Context, tx repository.Tx, report *model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.reports[report.StudyID] {
		if existing.JobID == report.JobID {
			r.reports[report.StudyID][i] = *report
			return nil
		}
	}
	r.reports[report.StudyID] = append(r.reports[report.StudyID], *report)
	return nil
}

func (r *fakeStudyRepo) ListReports(ctx context.Context, tx repository.Tx, studyID int64) ([]model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Report(nil), r.reports[studyID]...), nil
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	published []model.ProgressEvent
	events    chan model.ProgressEvent
	subErr    error
	cancelled bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{events: make(chan model.ProgressEvent, 16)}
}

func (b *fakeBroadcaster) Publish(ctx context.Context, event model.ProgressEvent) {
	b.mu.Lock()
	b.published = append(b.published, event)
	b.mu.Unlock()
	select {
	case b.events <- event:
	default:
	}
}

func (b *fakeBroadcaster) Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressEvent, func(), error) {
	if b.subErr != nil {
		return nil, nil, b.subErr
	}
	return b.events, func() { b.cancelled = true }, nil
}

// lossyBroadcaster models a transport where no publish is guaranteed to
// arrive: subscribers get an open channel that never delivers, and events
// published before Subscribe are not replayed.
type lossyBroadcaster struct {
	events chan model.ProgressEvent
}

func newLossyBroadcaster() *lossyBroadcaster {
	return &lossyBroadcaster{events: make(chan model.ProgressEvent)}
}

func (b *lossyBroadcaster) Publish(ctx context.Context, event model.ProgressEvent) {}

func (b *lossyBroadcaster) Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressEvent, func(), error) {
	return b.events, func() {}, nil
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
}

func (r *fakeRunner) Run(ctx context.Context, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, jobID)
}

func (r *fakeRunner) ranJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.runs))
	copy(out, r.runs)
	return out
}

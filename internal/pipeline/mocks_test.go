//go:build !integration

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.AnalysisJob

	// progress history as observed through Update commits
	history []int
}

func newMemJobRepo(jobs ...*model.AnalysisJob) *memJobRepo {
	r := &memJobRepo{jobs: make(map[string]*model.AnalysisJob)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *memJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobRepo) Update(ctx context.Context, id string, mutate func(job *model.AnalysisJob) error) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	r.history = append(r.history, job.Progress)
	cp := *job
	return &cp, nil
}

func (r *memJobRepo) progressHistory() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.history))
	copy(out, r.history)
	return out
}

type memStudyRepo struct {
	mu       sync.Mutex
	nextID   int64
	findings map[int64][]model.Finding
	reports  map[int64][]model.Report

	replaceErr error
	upsertErr  error
}

func newMemStudyRepo() *memStudyRepo {
	return &memStudyRepo{
		findings: make(map[int64][]model.Finding),
		reports:  make(map[int64][]model.Report),
	}
}

func (r *memStudyRepo) CreateStudy(ctx context.Context, tx repository.Tx, study *model.Study) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	study.ID = r.nextID
	study.CreatedAt = time.Now()
	return nil
}

func (r *memStudyRepo) FindStudyByID(ctx context.Context, tx repository.Tx, id int64) (*model.Study, error) {
	return nil, domain.ErrNotFound
}

func (r *memStudyRepo) ReplaceFindings(ctx context.Context, studyID int64, jobID string, findings []model.Finding) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings[studyID] = append([]model.Finding(nil), findings...)
	return nil
}

func (r *memStudyRepo) ListFindings(ctx context.Context, tx repository.Tx, studyID int64) ([]model.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Finding(nil), r.findings[studyID]...), nil
}

func (r *memStudyRepo) UpsertReport(ctx context.Context, tx repository.Tx, report *model.Report) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.StudyID] = append(r.reports[report.StudyID], *report)
	return nil
}

func (r *memStudyRepo) ListReports(ctx context.Context, tx repository.Tx, studyID int64) ([]model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Report(nil), r.reports[studyID]...), nil
}

type memStorage struct {
	objects map[string][]byte
}

func (s *memStorage) GetObjectBytes(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *memStorage) PutObjectBytes(ctx context.Context, key string, data []byte, contentType string) error {
	s.objects[key] = data
	return nil
}

func (s *memStorage) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.local/put/" + key, nil
}

func (s *memStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.local/get/" + key, nil
}

type capturingBroadcaster struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (b *capturingBroadcaster) Publish(ctx context.Context, event model.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *capturingBroadcaster) Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressEvent, func(), error) {
	ch := make(chan model.ProgressEvent)
	close(ch)
	return ch, func() {}, nil
}

func (b *capturingBroadcaster) published() []model.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.ProgressEvent, len(b.events))
	copy(out, b.events)
	return out
}

// stubVision is a scripted vision adapter: the first Classify call returns
// the first response, the second call the second, and so on.
type stubVision struct {
	responses [][]model.Finding
	errs      []error
	calls     int

	summary      string
	summarizeErr error
	contexts     []string
}

func (v *stubVision) Classify(ctx context.Context, image []byte, extraContext string) ([]model.Finding, error) {
	idx := v.calls
	v.calls++
	v.contexts = append(v.contexts, extraContext)
	if idx < len(v.errs) && v.errs[idx] != nil {
		return nil, v.errs[idx]
	}
	if idx < len(v.responses) {
		return v.responses[idx], nil
	}
	return nil, nil
}

func (v *stubVision) Summarize(ctx context.Context, text string) (string, error) {
	if v.summarizeErr != nil {
		return "", v.summarizeErr
	}
	return v.summary, nil
}

func (v *stubVision) ModelName() string { return "stub-vision" }

type stubSearcher struct {
	docs      []model.KnowledgeDocument
	err       error
	lastQuery string
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error) {
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.docs, nil
}

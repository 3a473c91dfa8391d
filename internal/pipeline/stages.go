package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/domain/ports/repository"
)

// DocumentSearcher is the slice of the retrieval engine the RAG stage needs.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error)
}

// --- Classify ---

// ClassifyStage runs plain classification on the image. A provider failure
// degrades to zero findings; it never fails the job on its own.
type ClassifyStage struct {
	vision adapter.VisionAnalysisAdapter
	log    *zerolog.Logger
}

func NewClassifyStage(vision adapter.VisionAnalysisAdapter, log *zerolog.Logger) *ClassifyStage {
	return &ClassifyStage{vision: vision, log: log}
}

func (s *ClassifyStage) Name() string { return "classify" }

func (s *ClassifyStage) Run(ctx context.Context, pc *Context, report ProgressFunc) error {
	findings, err := s.vision.Classify(ctx, pc.Image, "")
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", pc.Job.ID).Msg("classification degraded to zero findings")
		pc.Findings = nil
		return nil
	}
	pc.Findings = findings
	report(30, "classified")
	return nil
}

// --- RAG enhance ---

// RAGEnhanceStage runs the two-pass retrieval-augmented re-analysis: build a
// query from the top-3 highest-confidence labels, retrieve documents,
// assemble a bounded context block, and re-classify with it. Any failure
// falls back silently to the findings from the first pass.
type RAGEnhanceStage struct {
	searcher        DocumentSearcher
	vision          adapter.VisionAnalysisAdapter
	topK            int
	docContextChars int
	log             *zerolog.Logger
}

func NewRAGEnhanceStage(searcher DocumentSearcher, vision adapter.VisionAnalysisAdapter, topK, docContextChars int, log *zerolog.Logger) *RAGEnhanceStage {
	return &RAGEnhanceStage{
		searcher:        searcher,
		vision:          vision,
		topK:            topK,
		docContextChars: docContextChars,
		log:             log,
	}
}

func (s *RAGEnhanceStage) Name() string { return "rag_enhance" }

func (s *RAGEnhanceStage) Run(ctx context.Context, pc *Context, report ProgressFunc) error {
	if len(pc.Findings) == 0 {
		return nil
	}

	query := topLabelsQuery(pc.Findings, 3)
	docs, err := s.searcher.Search(ctx, query, s.topK)
	if err != nil || len(docs) == 0 {
		if err != nil {
			s.log.Warn().Err(err).Str("job_id", pc.Job.ID).Msg("retrieval failed, keeping initial findings")
		}
		return nil
	}

	contextBlock := assembleContext(docs, s.docContextChars)
	if contextBlock == "" {
		return nil
	}

	enhanced, err := s.vision.Classify(ctx, pc.Image, contextBlock)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", pc.Job.ID).Msg("re-analysis failed, keeping initial findings")
		return nil
	}
	if len(enhanced) > 0 {
		pc.Findings = enhanced
	}
	report(55, "rag_enhanced")
	return nil
}

// topLabelsQuery joins the n highest-confidence labels into a search query.
func topLabelsQuery(findings []model.Finding, n int) string {
	sorted := make([]model.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	labels := make([]string, 0, len(sorted))
	for _, f := range sorted {
		labels = append(labels, f.Label)
	}
	return strings.Join(labels, " ")
}

// assembleContext builds the bounded context block injected into the
// re-analysis instructions, each document truncated and tagged with its
// source and title.
func assembleContext(docs []model.KnowledgeDocument, perDocChars int) string {
	var parts []string
	for _, d := range docs {
		content := d.Content
		if len(content) > perDocChars {
			content = content[:perDocChars]
		}
		if content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s: %s]\n%s", d.Source, d.Title, content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// --- Summarize ---

// SummarizeStage produces the summary text: the summarization capability when
// report text was supplied, otherwise a deterministic summary derived from
// the findings.
type SummarizeStage struct {
	vision    adapter.VisionAnalysisAdapter
	threshold float64
	log       *zerolog.Logger
}

func NewSummarizeStage(vision adapter.VisionAnalysisAdapter, threshold float64, log *zerolog.Logger) *SummarizeStage {
	return &SummarizeStage{vision: vision, threshold: threshold, log: log}
}

func (s *SummarizeStage) Name() string { return "summarize" }

func (s *SummarizeStage) Run(ctx context.Context, pc *Context, report ProgressFunc) error {
	if pc.ReportText != "" {
		summary, err := s.vision.Summarize(ctx, pc.ReportText)
		if err != nil {
			s.log.Warn().Err(err).Str("job_id", pc.Job.ID).Msg("summarization degraded to findings summary")
		} else if summary != "" {
			pc.Summary = summary
			pc.SummaryModel = s.vision.ModelName()
			report(60, "summarized")
			return nil
		}
	}

	if len(pc.Findings) > 0 {
		pc.Summary = FindingsSummary(pc.Findings, s.threshold)
		report(60, "summarized")
	}
	return nil
}

// FindingsSummary derives a deterministic summary from the finding set.
func FindingsSummary(findings []model.Finding, threshold float64) string {
	if len(findings) == 0 {
		return "No significant findings detected."
	}
	var high []model.Finding
	for _, f := range findings {
		if f.Confidence > threshold {
			high = append(high, f)
		}
	}
	if len(high) == 0 {
		return "Low confidence findings detected. Manual review strongly recommended."
	}
	sort.SliceStable(high, func(i, j int) bool { return high[i].Confidence > high[j].Confidence })
	if len(high) > 3 {
		high = high[:3]
	}
	labels := make([]string, 0, len(high))
	for _, f := range high {
		labels = append(labels, f.Label)
	}
	return fmt.Sprintf("Key findings: %s. Further clinical correlation recommended.", strings.Join(labels, ", "))
}

// --- Persist ---

// PersistStage writes findings and the report as durable records. A failure
// here aborts the job: the stage error propagates to the executor boundary.
// Retries are safe because ReplaceFindings and UpsertReport are idempotent
// per (study, job).
type PersistStage struct {
	studies repository.StudyRepository
}

func NewPersistStage(studies repository.StudyRepository) *PersistStage {
	return &PersistStage{studies: studies}
}

func (s *PersistStage) Name() string { return "persist" }

func (s *PersistStage) Run(ctx context.Context, pc *Context, report ProgressFunc) error {
	if err := s.studies.ReplaceFindings(ctx, pc.Study.ID, pc.Job.ID, pc.Findings); err != nil {
		return fmt.Errorf("persist findings: %w", err)
	}

	if pc.Summary != "" || pc.ReportText != "" {
		text := pc.ReportText
		if text == "" {
			text = pc.Summary
		}
		rep := &model.Report{
			StudyID:      pc.Study.ID,
			JobID:        pc.Job.ID,
			Text:         text,
			SummaryModel: pc.SummaryModel,
		}
		if err := s.studies.UpsertReport(ctx, nil, rep); err != nil {
			return fmt.Errorf("persist report: %w", err)
		}
	}
	report(90, "persisted")
	return nil
}

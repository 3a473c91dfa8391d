package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
)

const maxImageUploadBytes = 32 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrProviderUnavailable):
		http.Error(w, "Analysis provider unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// ===== auth =====

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if s.adminUser == "" || req.Username != s.adminUser || req.Password != s.adminPass {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		token, err := s.auth.Mint(w, req.Username, "admin")
		if err != nil {
			http.Error(w, "Failed to mint token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// ===== uploads =====

type presignRequest struct {
	Key string `json:"key"`
}

func (s *Server) presignUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req presignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		url, err := s.analysisUC.PresignUpload(r.Context(), req.Key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"upload_url": url, "key": req.Key})
	}
}

// ===== analysis jobs =====

type startAnalysisRequest struct {
	ImageKey   string `json:"image_key"`
	ReportText string `json:"report_text"`
}

type jobResponse struct {
	ID        string           `json:"id"`
	Status    model.JobStatus  `json:"status"`
	Progress  int              `json:"progress"`
	Error     string           `json:"error,omitempty"`
	Result    *model.JobResult `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func toJobResponse(job *model.AnalysisJob) jobResponse {
	return jobResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		Result:    job.Result,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func (s *Server) startAnalysisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startAnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		job, err := s.analysisUC.Submit(r.Context(), req.ImageKey, req.ReportText)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toJobResponse(job))
	}
}

func (s *Server) getJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := s.analysisUC.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(job))
	}
}

// jobEventsHandler serves the SSE stream of progress events for one job.
func (s *Server) jobEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		jobID := chi.URLParam(r, "id")
		// Resolve the job before committing to the stream so an unknown id
		// still gets a plain 404.
		if _, err := s.analysisUC.GetJob(r.Context(), jobID); err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		err := s.streamUC.Stream(r.Context(), jobID, func(ev model.ProgressEvent) error {
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Headers may already be out; deliver the error in-band.
				_, _ = fmt.Fprintf(w, "data: {\"error\":\"job not found\"}\n\n")
				flusher.Flush()
				return
			}
			s.log.Warn().Err(err).Str("job_id", jobID).Msg("event stream ended with error")
		}
	}
}

// analyzeSyncHandler runs classification inline on a multipart image upload.
func (s *Server) analyzeSyncHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
			http.Error(w, "Invalid multipart body", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "An image file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()
		image, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes))
		if err != nil {
			http.Error(w, "Failed to read image", http.StatusBadRequest)
			return
		}

		res, err := s.analysisUC.Analyze(r.Context(), image, r.FormValue("report_text"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ===== studies =====

func (s *Server) getStudyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid study id", http.StatusBadRequest)
			return
		}

		study, findings, reports, err := s.analysisUC.GetStudy(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		response := struct {
			Study    *model.Study    `json:"study"`
			Findings []model.Finding `json:"findings"`
			Reports  []model.Report  `json:"reports"`
		}{
			Study:    study,
			Findings: findings,
			Reports:  reports,
		}
		writeJSON(w, http.StatusOK, response)
	}
}

func (s *Server) studyImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid study id", http.StatusBadRequest)
			return
		}

		study, _, _, err := s.analysisUC.GetStudy(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		url, err := s.analysisUC.ImageURL(r.Context(), study.ImageKey)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// ===== knowledge base =====

type knowledgeCreateRequest struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	DocType  string         `json:"doc_type"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) knowledgeCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req knowledgeCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Title == "" || req.Content == "" {
			http.Error(w, "Title and content are required", http.StatusBadRequest)
			return
		}

		doc, err := s.knowledgeUC.AddDocument(r.Context(), req.Title, req.Content, req.Source, req.DocType, req.Metadata)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

func (s *Server) knowledgeListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		docs, err := s.knowledgeUC.List(r.Context(), limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}

		response := struct {
			Data   []model.KnowledgeDocument `json:"data"`
			Limit  int                       `json:"limit"`
			Offset int                       `json:"offset"`
		}{
			Data:   docs,
			Limit:  limit,
			Offset: offset,
		}
		writeJSON(w, http.StatusOK, response)
	}
}

func (s *Server) knowledgeSearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			http.Error(w, "Query parameter q is required", http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		docs, err := s.knowledgeUC.Search(r.Context(), query, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if docs == nil {
			docs = []model.KnowledgeDocument{}
		}
		writeJSON(w, http.StatusOK, struct {
			Data []model.KnowledgeDocument `json:"data"`
		}{Data: docs})
	}
}

func (s *Server) knowledgeStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, sources, err := s.knowledgeUC.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Total   int64    `json:"total"`
			Sources []string `json:"sources"`
		}{Total: total, Sources: sources})
	}
}

func (s *Server) knowledgeGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid document id", http.StatusBadRequest)
			return
		}
		doc, err := s.knowledgeUC.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) knowledgeDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid document id", http.StatusBadRequest)
			return
		}
		if err := s.knowledgeUC.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

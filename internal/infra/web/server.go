package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mediview-ai-service/internal/infra/logging"
	"mediview-ai-service/internal/usecase"
)

// Server wires the HTTP API to the use cases.
type Server struct {
	analysisUC  usecase.AnalysisUseCase
	knowledgeUC usecase.KnowledgeUseCase
	streamUC    usecase.StreamUseCase
	auth        *AuthManager
	adminUser   string
	adminPass   string
	log         *zerolog.Logger
}

func NewServer(
	analysisUC usecase.AnalysisUseCase,
	knowledgeUC usecase.KnowledgeUseCase,
	streamUC usecase.StreamUseCase,
	auth *AuthManager,
	adminUser, adminPass string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		analysisUC:  analysisUC,
		knowledgeUC: knowledgeUC,
		streamUC:    streamUC,
		auth:        auth,
		adminUser:   adminUser,
		adminPass:   adminPass,
		log:         logger,
	}
}

// Router builds the full route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/auth/login", s.loginHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/api/uploads/presign", s.presignUploadHandler())
		r.Post("/api/analyze/start", s.startAnalysisHandler())
		r.Post("/api/analyze", s.analyzeSyncHandler())
		r.Get("/api/jobs/{id}", s.getJobHandler())
		r.Get("/api/jobs/{id}/events", s.jobEventsHandler())

		r.Get("/api/studies/{id}", s.getStudyHandler())
		r.Get("/api/studies/{id}/image", s.studyImageHandler())

		r.Post("/api/knowledge", s.knowledgeCreateHandler())
		r.Get("/api/knowledge", s.knowledgeListHandler())
		r.Get("/api/knowledge/search", s.knowledgeSearchHandler())
		r.Get("/api/knowledge/stats", s.knowledgeStatsHandler())
		r.Get("/api/knowledge/{id}", s.knowledgeGetHandler())
		r.Delete("/api/knowledge/{id}", s.knowledgeDeleteHandler())
	})

	return r
}

// traceMiddleware tags the request context with a trace id and logs the
// request once it completes.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Request-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Request-Id", traceID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.log.Debug().
			Str("trace_id", traceID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware requires a valid session token on everything under /api
// except login.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

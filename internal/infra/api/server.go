package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"llm-search-insight/internal/usecase"
)

// Server exposes the analysis API and the admin surface.
type Server struct {
	analysisUC usecase.AnalysisUseCase
	statsUC    usecase.StatsUseCase
	auth       *AuthManager
	apiKey     string
	log        *zerolog.Logger
}

func NewServer(
	analysisUC usecase.AnalysisUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		analysisUC: analysisUC,
		statsUC:    statsUC,
		auth:       auth,
		apiKey:     apiKey,
		log:        logger,
	}
}

// Router builds the chi router for the whole HTTP surface.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.submitHandler())
		r.Get("/analyze/{id}/status", s.statusHandler())
		r.Get("/analyze/{id}", s.resultHandler())

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.loginHandler())
			r.With(s.adminMiddleware).Get("/stats", s.statsHandler())
			r.With(s.adminMiddleware).Get("/models", s.modelsHandler())
		})
	})

	return r
}

// adminMiddleware guards operator endpoints with the JWT session.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

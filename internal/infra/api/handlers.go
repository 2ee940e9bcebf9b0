package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"llm-search-insight/internal/domain"
	"llm-search-insight/internal/domain/model"
)

const (
	errTypeValidation = "ValidationError"
	errTypeNotFound   = "NotFound"
)

// errorResponse is the envelope returned on every failure.
type errorResponse struct {
	Error   string `json:"error"`
	Details struct {
		Message string `json:"message"`
	} `json:"details"`
}

func writeError(w http.ResponseWriter, code int, errType, msg string) {
	var resp errorResponse
	resp.Error = errType
	resp.Details.Message = msg
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type analyzeRequest struct {
	ResearchQuestion string `json:"research_question"`
}

type analyzeResponse struct {
	AnalysisID string               `json:"analysis_id"`
	Status     model.AnalysisStatus `json:"status"`
}

// submitHandler accepts a research question and queues (or cache-serves) a job.
func (s *Server) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errTypeValidation, "invalid request body")
			return
		}

		a, err := s.analysisUC.Submit(r.Context(), req.ResearchQuestion)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				writeError(w, http.StatusBadRequest, errTypeValidation, err.Error())
				return
			}
			s.log.Error().Err(err).Msg("submit failed")
			writeError(w, http.StatusInternalServerError, "Internal", "failed to submit analysis")
			return
		}

		writeJSON(w, http.StatusAccepted, analyzeResponse{AnalysisID: a.ID, Status: a.Status})
	}
}

// statusHandler is the polling endpoint.
func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		st, err := s.analysisUC.StatusOf(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, errTypeNotFound, "Analysis ID not found")
				return
			}
			s.log.Error().Err(err).Str("analysis_id", id).Msg("status lookup failed")
			writeError(w, http.StatusInternalServerError, "Internal", "failed to read status")
			return
		}

		writeJSON(w, http.StatusOK, st)
	}
}

// resultHandler serves the full report. Unknown ids and jobs that are not yet
// complete (including failed ones) both read as not found.
func (s *Server) resultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		res, err := s.analysisUC.ResultOf(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotReady) {
				writeError(w, http.StatusNotFound, errTypeNotFound, "Result not found or not complete")
				return
			}
			s.log.Error().Err(err).Str("analysis_id", id).Msg("result lookup failed")
			writeError(w, http.StatusInternalServerError, "Internal", "failed to read result")
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// loginHandler exchanges the operator API key for a JWT session.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
			writeError(w, http.StatusBadRequest, errTypeValidation, "invalid request body")
			return
		}
		if req.APIKey != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		token, err := s.auth.Mint(w)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to mint session")
			writeError(w, http.StatusInternalServerError, "Internal", "failed to create session")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// modelsHandler lists the models the configured AI provider offers.
func (s *Server) modelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := s.statsUC.Models(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list models")
			writeError(w, http.StatusInternalServerError, "Internal", "failed to list models")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"models": models})
	}
}

// statsHandler reports analysis counts by status for the admin surface.
func (s *Server) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totals, err := s.statsUC.Totals(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("failed to get totals")
			writeError(w, http.StatusInternalServerError, "Internal", "failed to get totals")
			return
		}

		byStatus := make(map[string]int, len(totals))
		total := 0
		for st, n := range totals {
			byStatus[string(st)] = n
			total += n
		}

		writeJSON(w, http.StatusOK, struct {
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
		}{Total: total, ByStatus: byStatus})
	}
}

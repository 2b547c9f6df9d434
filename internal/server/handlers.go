package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/pipeline"
	"github.com/schemforge/schemforge/pkg/report"
)

// runResponse is the JSON response for a pipeline run.
type runResponse struct {
	Report    *report.Report     `json:"report"`
	Artifacts map[string][]byte  `json:"artifacts,omitempty"`
	CacheInfo pipeline.CacheInfo `json:"cache_info"`
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun accepts pipeline options with an inline schematic, runs the
// pipeline, and persists the run report.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.ErrCodeMalformedInput, "invalid request body")
		return
	}
	if opts.Schematic == "" {
		writeError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "schematic is required")
		return
	}
	if opts.Oracle == pipeline.OracleGemini {
		opts.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.logger.Error("run failed", "error", err)
		writeError(w, statusFor(err), apperrors.GetCode(err), apperrors.UserMessage(err))
		return
	}

	if err := s.store.Save(r.Context(), res.Report); err != nil {
		s.logger.Warn("failed to persist report", "run", res.Report.RunID, "error", err)
	}

	writeJSON(w, http.StatusOK, runResponse{
		Report:    res.Report,
		Artifacts: res.Artifacts,
		CacheInfo: res.CacheInfo,
	})
}

// handleGetRun returns a persisted run report by ID.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), apperrors.GetCode(err), apperrors.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleListRuns returns recent run reports, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = n
	}
	reports, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), apperrors.GetCode(err), apperrors.UserMessage(err))
		return
	}
	if reports == nil {
		reports = []*report.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// statusFor maps application error codes to HTTP status codes.
func statusFor(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeMalformedInput,
		apperrors.ErrCodeDuplicateComponent,
		apperrors.ErrCodeEmptyComponent,
		apperrors.ErrCodeInvalidRole,
		apperrors.ErrCodeUnknownPin,
		apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnassignedPin,
		apperrors.ErrCodeEmptyNet,
		apperrors.ErrCodeComponentShort,
		apperrors.ErrCodeRoleConflict,
		apperrors.ErrCodeDoubleAssigned,
		apperrors.ErrCodeDeclaredConflict:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	writeJSON(w, status, errorResponse{Code: string(code), Message: message})
}

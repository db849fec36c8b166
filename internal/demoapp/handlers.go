package demoapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const ErrCodeNotFound = "NOT_FOUND"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
	Mode   string `json:"mode"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", App: s.cfg.App, Mode: s.cfg.Mode()})
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.schema.Tables))
	for _, t := range s.schema.Tables {
		names = append(names, t.Name)
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, ok := s.schema.Table(name)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "table not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// Package api serves the dashboard's boards over HTTP. Every request builds
// its own view state from the query string, so handlers share no mutable
// state beyond the read-only catalog.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/asaidimu/go-tabula/core/export"
	"github.com/asaidimu/go-tabula/core/query"
	"github.com/asaidimu/go-tabula/dashboard"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Error codes reported in APIError.Code.
const (
	CodeUnknownView  = "UNKNOWN_VIEW"
	CodeInvalidQuery = "INVALID_QUERY"
	CodeViewFailed   = "VIEW_FAILED"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ViewResponse is the payload of a view request: the normalized state that
// was evaluated and its result.
type ViewResponse struct {
	View   string          `json:"view"`
	State  query.ViewState `json:"state"`
	Result any             `json:"result"`
}

// HealthResponse is the payload of the health check.
type HealthResponse struct {
	Status string    `json:"status"`
	Views  int       `json:"views"`
	Time   time.Time `json:"time"`
}

// Server routes HTTP requests to the boards of a catalog.
type Server struct {
	catalog *dashboard.Catalog
	logger  *zap.Logger
	router  *mux.Router
	clock   func() time.Time
}

// NewServer creates a server over catalog.
func NewServer(catalog *dashboard.Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		catalog: catalog,
		logger:  logger,
		router:  mux.NewRouter(),
		clock:   time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/views", s.handleViews).Methods(http.MethodGet)
	s.router.HandleFunc("/api/views/{view}", s.handleView).Methods(http.MethodGet)
	s.router.HandleFunc("/api/views/{view}/export", s.handleExport).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("No route for %s", r.URL.Path), "")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is supported", "")
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	return s.CORSMiddleware(s)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeSuccessResponse(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Views:  len(s.catalog.Boards()),
		Time:   s.clock().UTC(),
	})
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	boards := s.catalog.Boards()
	infos := make([]dashboard.BoardInfo, 0, len(boards))
	for _, b := range boards {
		infos = append(infos, b.Info())
	}
	s.writeSuccessResponse(w, http.StatusOK, infos)
}

// resolve looks up the board named in the path and parses its view state. It
// writes the error response and returns false on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (dashboard.Board, query.ViewState, bool) {
	name := mux.Vars(r)["view"]
	board, ok := s.catalog.Board(name)
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, CodeUnknownView, fmt.Sprintf("View '%s' not found", name), "")
		return nil, query.ViewState{}, false
	}

	state, err := ParseState(board, r.URL.Query())
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeInvalidQuery, "Invalid view parameters", err.Error())
		return nil, query.ViewState{}, false
	}
	state, err = board.Normalize(state)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeInvalidQuery, "Invalid view parameters", err.Error())
		return nil, query.ViewState{}, false
	}
	return board, state, true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	board, state, ok := s.resolve(w, r)
	if !ok {
		return
	}

	result, err := board.View(state)
	if err != nil {
		s.writeViewError(w, board, err)
		return
	}
	s.writeSuccessResponse(w, http.StatusOK, ViewResponse{View: board.Name(), State: state, Result: result})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	board, state, ok := s.resolve(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := board.Export(&buf, state); err != nil {
		s.writeViewError(w, board, err)
		return
	}

	w.Header().Set("Content-Type", export.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(board.Title())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("Failed to write export", zap.String("view", board.Name()), zap.Error(err))
	}
}

// writeViewError reports evaluation failures. Errors caused by the request,
// such as a strict view rejecting an unknown field, are client errors.
func (s *Server) writeViewError(w http.ResponseWriter, board dashboard.Board, err error) {
	if isClientError(err) {
		s.writeErrorResponse(w, http.StatusBadRequest, CodeInvalidQuery, "Invalid view parameters", err.Error())
		return
	}
	s.logger.Error("View evaluation failed", zap.String("view", board.Name()), zap.Error(err))
	s.writeErrorResponse(w, http.StatusInternalServerError, CodeViewFailed, fmt.Sprintf("Failed to compute view '%s'", board.Name()), err.Error())
}

func isClientError(err error) bool {
	for _, target := range []error{
		query.ErrUnknownField,
		query.ErrInvalidFilter,
		query.ErrInvalidPageSize,
		query.ErrInvalidSort,
		query.ErrInvalidGroupMode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeSuccessResponse writes a successful API response
func (s *Server) writeSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	s.writeJSONResponse(w, statusCode, APIResponse{Success: true, Data: data})
}

// writeErrorResponse writes an error API response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, code, message, details string) {
	s.writeJSONResponse(w, statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// CORSMiddleware allows read-only cross-origin access.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

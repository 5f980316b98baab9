// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/roster/internal/adapters/mq/queue"
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/domain/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 32 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	JobDependencies
	ResolveDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	jobsHandler    *JobsHandler
	resolveHandler *ResolveHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		jobsHandler:    NewJobsHandler(deps),
		resolveHandler: NewResolveHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /jobs", MetricsMiddleware(s.jobsHandler.HandleSubmit, "jobs"))
	mux.HandleFunc("GET /jobs", MetricsMiddleware(s.jobsHandler.HandleList, "jobs"))
	mux.HandleFunc("GET /jobs/{id}", MetricsMiddleware(s.jobsHandler.HandleGet, "job"))
	mux.HandleFunc("POST /resolve", MetricsMiddleware(s.resolveHandler.HandleResolve, "resolve"))
}

// submissionRequest mirrors the OpenAPI schema shared by POST /jobs and POST /resolve.
type submissionRequest struct {
	SubmissionID    string              `json:"submission_id"`
	CurrentSemester string              `json:"current_semester"`
	Records         []model.ScoreRecord `json:"records"`
}

func (r *submissionRequest) submission() model.Submission {
	return model.Submission{
		SubmissionID:    r.SubmissionID,
		CurrentSemester: r.CurrentSemester,
		Records:         r.Records,
	}
}

func decodeSubmission(w http.ResponseWriter, r *http.Request, op string) (model.Submission, error) {
	var req submissionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return model.Submission{}, WrapKind(op, ErrBadRequest, err)
	}
	if len(req.Records) == 0 {
		return model.Submission{}, WrapKind(op, ErrBadRequest, errors.New("missing records"))
	}
	return req.submission(), nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps upstream errors onto an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrInvalidSubmission):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrQueueFull), errors.Is(err, repository.ErrStoreFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable), errors.Is(err, queue.ErrQueueClosed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeClassified(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/roster/internal/domain/model"
)

// Listing bounds for GET /jobs.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// JobDependencies defines the asynchronous job operations.
type JobDependencies interface {
	Submit(ctx context.Context, sub model.Submission) (model.Job, bool, error)
	Job(ctx context.Context, id string) (model.Job, error)
	Jobs(ctx context.Context, limit int) ([]model.Job, error)
}

// JobsHandler handles job requests.
type JobsHandler struct {
	deps JobDependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobDependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

type submitResponse struct {
	Job       model.Job `json:"job"`
	Duplicate bool      `json:"duplicate"`
}

type listResponse struct {
	Jobs []model.Job `json:"jobs"`
}

// HandleSubmit handles POST /jobs. New jobs are answered with 202 and a
// Location header; a repeated submission_id is answered with 200 and the
// earlier job.
func (h *JobsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_job"
	sub, err := decodeSubmission(w, r, op)
	if err != nil {
		writeClassified(w, err)
		return
	}

	job, duplicate, err := h.deps.Submit(r.Context(), sub)
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}

	w.Header().Set("Location", "/jobs/"+job.ID)
	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, submitResponse{Job: job, Duplicate: duplicate})
}

// HandleGet handles GET /jobs/{id}.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	id := r.PathValue("id")
	if id == "" {
		writeClassified(w, NewKind(op, ErrBadRequest))
		return
	}
	job, err := h.deps.Job(r.Context(), id)
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleList handles GET /jobs?limit=N.
func (h *JobsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_jobs"
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeClassified(w, WrapKind(op, ErrBadRequest,
				fmt.Errorf("limit must be between 1 and %d", maxListLimit)))
			return
		}
		limit = n
	}
	jobs, err := h.deps.Jobs(r.Context(), limit)
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeJSON(w, http.StatusOK, listResponse{Jobs: jobs})
}

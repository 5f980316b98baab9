package api

import (
	"context"
	"net/http"

	"github.com/okian/roster/internal/domain/model"
)

// ResolveDependencies defines synchronous resolution.
type ResolveDependencies interface {
	ResolveNow(ctx context.Context, sub model.Submission) (model.Job, error)
}

// ResolveHandler handles inline resolution requests.
type ResolveHandler struct {
	deps ResolveDependencies
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(deps ResolveDependencies) *ResolveHandler {
	return &ResolveHandler{deps: deps}
}

// HandleResolve handles POST /resolve and answers with the finished job.
func (h *ResolveHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve"
	sub, err := decodeSubmission(w, r, op)
	if err != nil {
		writeClassified(w, err)
		return
	}
	job, err := h.deps.ResolveNow(r.Context(), sub)
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

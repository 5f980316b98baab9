// Package repository persists resolution jobs.
package repository

import (
	"context"

	"github.com/okian/roster/internal/domain/model"
)

// Store provides read/write access to submitted jobs.
type Store interface {
	// Create stores a new job. It fails with ErrDuplicate if the id exists.
	Create(ctx context.Context, job model.Job) error

	// Update replaces a stored job. It fails with ErrNotFound for unknown ids.
	Update(ctx context.Context, job model.Job) error

	// Get returns the job with id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Job, error)

	// List returns up to limit job summaries, newest first.
	List(ctx context.Context, limit int) ([]model.Job, error)

	// Count returns the number of stored jobs.
	Count(ctx context.Context) (int, error)

	Close() error
}

func cloneJob(job model.Job) model.Job { //nolint:gocritic // copied by value on purpose
	out := job
	if job.Records != nil {
		out.Records = append([]model.ScoreRecord(nil), job.Records...)
	}
	if job.Diagnostics != nil {
		out.Diagnostics = append([]string(nil), job.Diagnostics...)
	}
	if job.Corrections != nil {
		out.Corrections = make(map[string]int, len(job.Corrections))
		for k, v := range job.Corrections {
			out.Corrections[k] = v
		}
	}
	return out
}

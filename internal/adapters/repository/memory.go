package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// MemoryStore keeps jobs in memory, bounded by WithMaxJobs.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]model.Job
	order   []string // creation order, oldest first
	maxJobs int
	logger  logger.Logger
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions("memory-store", opts)
	return &MemoryStore{
		jobs:    make(map[string]model.Job),
		maxJobs: o.maxJobs,
		logger:  o.logger,
	}
}

func (s *MemoryStore) Create(ctx context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, job.ID)
	}
	if len(s.jobs) >= s.maxJobs && !s.evictOldestFinished(ctx) {
		return ErrStoreFull
	}
	s.jobs[job.ID] = cloneJob(job)
	s.order = append(s.order, job.ID)
	metrics.UpdateJobsStored(len(s.jobs))
	return nil
}

// evictOldestFinished drops the oldest completed or failed job. It reports
// false when every stored job is still pending.
func (s *MemoryStore) evictOldestFinished(ctx context.Context) bool {
	for i, id := range s.order {
		if !s.jobs[id].Status.Done() {
			continue
		}
		delete(s.jobs, id)
		s.order = append(s.order[:i], s.order[i+1:]...)
		s.logger.Debug(ctx, "evicted job", logger.String("job_id", id))
		return true
	}
	return false
}

func (s *MemoryStore) Update(_ context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]model.Job, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		job := s.jobs[s.order[i]]
		out = append(out, job.Summary())
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs), nil
}

func (s *MemoryStore) Close() error { return nil }

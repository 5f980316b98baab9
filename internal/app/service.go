// Package service wires the resolution engine to the job queue, worker pool
// and job store, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/roster/internal/adapters/mq/queue"
	workerpool "github.com/okian/roster/internal/adapters/mq/worker"
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/domain/dedupe"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/resolution"
	"github.com/okian/roster/internal/domain/similarity"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// Service accepts record lists, resolves them asynchronously or inline, and
// serves job results.
type Service struct {
	mu sync.RWMutex

	// admitMu orders the dedupe check and the store insert so a duplicate
	// id never observes a recorded key whose job is not stored yet.
	admitMu sync.Mutex

	store    repository.Store
	deduper  dedupe.Deduper
	jobQueue jobqueue.Queue
	engine   *resolution.Engine
	pool     *workerpool.Pool

	workerCount     int
	queueSize       int
	dedupeSize      int
	maxRecords      int
	maxJobs         int
	maxEditDistance int
	maxLengthDelta  int

	newID func() string
	now   func() time.Time

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service with default configuration. Start must be called
// before jobs are accepted.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		dedupeSize:      dedupe.DefaultMaxSize,
		maxRecords:      100_000,
		maxJobs:         1000,
		maxEditDistance: similarity.DefaultMaxEditDistance,
		maxLengthDelta:  similarity.DefaultMaxLengthDelta,
		newID:           uuid.NewString,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = resolution.New(resolution.WithMatcher(similarity.New(
		similarity.WithMaxEditDistance(s.maxEditDistance),
		similarity.WithMaxLengthDelta(s.maxLengthDelta),
	)))
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting roster service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithMaxJobs(s.maxJobs))
		s.logger.Info(ctx, "using memory store", logger.Int("max_jobs", s.maxJobs))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))

	// Workers outlive the caller's context so Stop can drain the queue.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = workerpool.NewPool(s.workerCount, s.jobQueue, s.engine, s.store,
		workerpool.WithClock(s.now))
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "roster service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop stops accepting jobs, lets workers finish the queue, and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping roster service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "roster service stopped")
	return errors.Join(errs...)
}

// prepare validates a submission and normalizes its records.
func (s *Service) prepare(sub *model.Submission) error {
	switch {
	case len(sub.Records) == 0:
		return fmt.Errorf("%w: no records", model.ErrInvalidSubmission)
	case len(sub.Records) > s.maxRecords:
		return fmt.Errorf("%w: %d records exceeds the limit of %d",
			model.ErrInvalidSubmission, len(sub.Records), s.maxRecords)
	}
	sub.CurrentSemester = model.Clean(sub.CurrentSemester)
	if err := resolution.Prepare(sub.Records); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidSubmission, err)
	}
	return nil
}

func (s *Service) newJob(sub model.Submission) model.Job { //nolint:gocritic // copied by value on purpose
	return model.Job{
		ID:              s.newID(),
		SubmissionID:    sub.SubmissionID,
		Status:          model.JobQueued,
		CurrentSemester: sub.CurrentSemester,
		Records:         sub.Records,
		CreatedAt:       s.now().UTC(),
	}
}

// Submit queues sub for asynchronous resolution. When sub carries a
// submission id that was already accepted, the earlier job is returned and
// duplicate is true.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (job model.Job, duplicate bool, err error) { //nolint:gocritic // copied by value on purpose
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Job{}, false, ErrNotStarted
	}
	if err := s.prepare(&sub); err != nil {
		return model.Job{}, false, err
	}

	job = s.newJob(sub)
	existing, found, err := s.admit(ctx, job)
	if err != nil {
		return model.Job{}, false, err
	}
	if found {
		return existing.Summary(), true, nil
	}
	if err := s.jobQueue.Enqueue(ctx, job); err != nil {
		s.forget(ctx, sub.SubmissionID)
		failed := job
		failed.Status = model.JobFailed
		failed.Error = err.Error()
		if updateErr := s.store.Update(ctx, failed); updateErr != nil {
			s.logger.Warn(ctx, "could not mark rejected job", logger.String("job_id", job.ID), logger.Error(updateErr))
		}
		return model.Job{}, false, fmt.Errorf("enqueue job: %w", err)
	}

	metrics.RecordJobSubmitted()
	s.logger.Debug(ctx, "job queued", logger.String("job_id", job.ID), logger.Int("records", len(job.Records)))
	return job.Summary(), false, nil
}

// admit records job's submission id and stores job. When the id was already
// accepted, the stored earlier job is returned with found set instead. An id
// whose job has since been evicted from the store is re-admitted for job.
func (s *Service) admit(ctx context.Context, job model.Job) (existing model.Job, found bool, err error) { //nolint:gocritic // copied by value on purpose
	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	if job.SubmissionID != "" {
		if prior, seen := s.deduper.SeenAndRecord(ctx, job.SubmissionID, job.ID); seen {
			existing, err := s.store.Get(ctx, prior)
			switch {
			case err == nil:
				metrics.RecordJobDuplicate()
				s.logger.Debug(ctx, "duplicate submission",
					logger.String("submission_id", job.SubmissionID),
					logger.String("job_id", prior),
				)
				return existing, true, nil
			case errors.Is(err, repository.ErrNotFound):
				s.logger.Debug(ctx, "earlier job evicted; accepting submission again",
					logger.String("submission_id", job.SubmissionID),
					logger.String("evicted_job_id", prior),
				)
				s.deduper.Unrecord(ctx, job.SubmissionID)
				s.deduper.SeenAndRecord(ctx, job.SubmissionID, job.ID)
			default:
				return model.Job{}, false, fmt.Errorf("load earlier job: %w", err)
			}
		}
	}

	if err := s.store.Create(ctx, job); err != nil {
		s.forget(ctx, job.SubmissionID)
		return model.Job{}, false, fmt.Errorf("store job: %w", err)
	}
	return model.Job{}, false, nil
}

func (s *Service) forget(ctx context.Context, submissionID string) {
	if submissionID != "" {
		s.deduper.Unrecord(ctx, submissionID)
	}
}

// ResolveNow resolves sub inline and returns the finished job without
// storing it.
func (s *Service) ResolveNow(ctx context.Context, sub model.Submission) (model.Job, error) { //nolint:gocritic // copied by value on purpose
	if err := s.prepare(&sub); err != nil {
		return model.Job{}, err
	}
	job := s.newJob(sub)
	if err := workerpool.Resolve(ctx, s.engine, &job, s.now); err != nil {
		return job, err
	}
	return job, nil
}

// Job returns a stored job by id.
func (s *Service) Job(ctx context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Job{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// Jobs returns up to limit job summaries, newest first.
func (s *Service) Jobs(ctx context.Context, limit int) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.List(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":           s.started,
		"worker_count":      s.workerCount,
		"queue_capacity":    s.queueSize,
		"dedupe_size":       s.dedupeSize,
		"max_records":       s.maxRecords,
		"max_edit_distance": s.maxEditDistance,
		"max_length_delta":  s.maxLengthDelta,
	}
	if !s.started {
		return stats
	}

	stats["queue_length"] = s.jobQueue.Len(ctx)
	stats["dedupe_entries"] = s.deduper.Size()
	if n, err := s.store.Count(ctx); err == nil {
		stats["stored_jobs"] = n
		metrics.UpdateJobsStored(n)
	}
	return stats
}

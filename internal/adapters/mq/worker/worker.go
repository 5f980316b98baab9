// Package worker runs queued resolution jobs through the engine and stores
// their results.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/resolution"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second
)

// Resolver runs identity resolution and attribute reconciliation.
type Resolver interface {
	Run(ctx context.Context, records []model.ScoreRecord) (resolution.Report, error)
}

// Updater persists job state transitions.
type Updater interface {
	Update(ctx context.Context, job model.Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Job
}

// Worker processes jobs until the queue drains or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// Resolve runs job through r and records the outcome on job. The records are
// filtered to job.CurrentSemester after resolution so that misspellings
// spanning semesters are still merged. A failed run leaves the job failed
// with the error text; the error is also returned.
func Resolve(ctx context.Context, r Resolver, job *model.Job, now func() time.Time) error {
	start := now()
	job.Status = model.JobRunning
	job.StartedAt = &start

	report, err := r.Run(ctx, job.Records)
	elapsed := now().Sub(start)
	metrics.RecordResolutionLatency(float64(elapsed.Milliseconds()))

	done := now()
	job.CompletedAt = &done
	if err != nil {
		job.Status = model.JobFailed
		job.Error = err.Error()
		metrics.RecordJobFailed()
		metrics.RecordErrorByComponent("worker", "resolve")
		return err
	}

	job.Records = resolution.FilterToSemester(job.Records, job.CurrentSemester)
	job.Diagnostics = report.Messages()
	job.Corrections = make(map[string]int)
	for _, d := range report.Diagnostics {
		job.Corrections[string(d.Kind)]++
	}
	job.Status = model.JobCompleted

	metrics.RecordJobCompleted()
	metrics.RecordRecordsResolved(report.Records)
	metrics.RecordIdentityRewrites("flipped_name", report.Identity.Flipped)
	metrics.RecordIdentityRewrites("missing_dash", report.Identity.MissingDash)
	metrics.RecordIdentityRewrites("misspelling", report.Identity.Misspelled)
	for kind, n := range job.Corrections {
		metrics.RecordDiagnostics(kind, n)
	}
	return nil
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	resolver Resolver
	updater  Updater
	name     string
	now      func() time.Time

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, resolver Resolver, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		resolver: resolver,
		updater:  updater,
		name:     "worker",
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.String("job_id", job.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job model.Job) error { //nolint:gocritic // value semantics across the channel
	metrics.IncWorkerActive()
	defer metrics.DecWorkerActive()

	running := job
	running.Status = model.JobRunning
	if err := w.updater.Update(ctx, running); err != nil {
		metrics.RecordErrorByComponent("worker", "store")
		return fmt.Errorf("mark job %s running: %w", job.ID, err)
	}

	resolveErr := Resolve(ctx, w.resolver, &job, w.now)
	if err := w.updater.Update(ctx, job); err != nil {
		metrics.RecordErrorByComponent("worker", "store")
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	if resolveErr != nil {
		return fmt.Errorf("resolve job %s: %w", job.ID, resolveErr)
	}

	w.logger.Debug(ctx, "job completed",
		logger.String("job_id", job.ID),
		logger.Int("records", len(job.Records)),
		logger.Int("diagnostics", len(job.Diagnostics)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, queue Queue, resolver Resolver, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, resolver, updater, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	return nil
}

package service

import (
	"time"

	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered. Zero keeps
// every id.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxRecords caps the records accepted in one submission.
func WithMaxRecords(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecords = n
		}
	}
}

// WithSimilarity sets the name similarity thresholds.
func WithSimilarity(maxEditDistance, maxLengthDelta int) Option {
	return func(s *Service) {
		s.maxEditDistance = maxEditDistance
		s.maxLengthDelta = maxLengthDelta
	}
}

// WithStore sets the job store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMaxJobs bounds the default memory store.
func WithMaxJobs(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxJobs = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides how job ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

package repository

import (
	"github.com/okian/roster/pkg/logger"
)

const defaultMaxJobs = 1000

type options struct {
	maxJobs int
	logger  logger.Logger
}

// Option applies a configuration option to a Store.
type Option func(*options)

// WithMaxJobs caps how many jobs the memory store keeps. Once full, the
// oldest finished job is evicted to make room.
func WithMaxJobs(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxJobs = n
		}
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(name string, opts []Option) options {
	o := options{maxJobs: defaultMaxJobs}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named(name)
	}
	return o
}

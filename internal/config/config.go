// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and ROSTER_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"

	"github.com/okian/roster/internal/domain/similarity"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: json or text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of resolution workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many submission ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// Store selects the job store backend: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath is the database file used when Store is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// MaxJobs caps how many jobs the memory store retains.
	MaxJobs int `koanf:"max_jobs"`

	// MaxRecords caps the records accepted in one request.
	MaxRecords int `koanf:"max_records"`

	// MaxEditDistance and MaxLengthDelta tune name similarity.
	MaxEditDistance int `koanf:"max_edit_distance"`
	MaxLengthDelta  int `koanf:"max_length_delta"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "json",
		Addr:            ":9080",
		QueueSize:       1024,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      10_000,
		Store:           StoreMemory,
		SQLitePath:      "roster.db",
		MaxJobs:         1000,
		MaxRecords:      100_000,
		MaxEditDistance: similarity.DefaultMaxEditDistance,
		MaxLengthDelta:  similarity.DefaultMaxLengthDelta,
	}
}

// Validate reports the first setting that cannot run the service.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "json" && c.LogFormat != "text":
		return fmt.Errorf("%w: log_format must be json or text, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreSQLite:
		return fmt.Errorf("%w: store must be %s or %s, got %q", ErrInvalidConfig, StoreMemory, StoreSQLite, c.Store)
	case c.Store == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must be set for the sqlite store", ErrInvalidConfig)
	case c.MaxJobs <= 0:
		return fmt.Errorf("%w: max_jobs must be positive", ErrInvalidConfig)
	case c.MaxRecords <= 0:
		return fmt.Errorf("%w: max_records must be positive", ErrInvalidConfig)
	case c.MaxEditDistance < 0 || c.MaxLengthDelta < 0:
		return fmt.Errorf("%w: similarity thresholds must not be negative", ErrInvalidConfig)
	}
	return nil
}

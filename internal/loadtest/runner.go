package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/roster/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// errEmptyConfig is returned when a run would submit nothing.
var errEmptyConfig = errors.New("load test needs at least one roster and one student")

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Run executes the complete load test and returns its statistics.
func Run(ctx context.Context, cfg Config) (*Stats, error) { //nolint:gocritic // copied on purpose
	config := cfg.withDefaults()
	if config.NumJobs <= 0 || config.Students <= 0 {
		return nil, errEmptyConfig
	}

	stats := &Stats{
		StartTime: time.Now(),
		Injected:  make(map[string]int),
		Detected:  make(map[string]int),
	}

	logger.Get().Info(ctx, "starting roster load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("rosters", config.NumJobs),
		logger.Int("students", config.Students),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate rosters
	rosters, err := generateRosters(ctx, &config, stats)
	if err != nil {
		return nil, fmt.Errorf("roster generation failed: %w", err)
	}

	// Step 3: Submit rosters concurrently
	ids := submitRosters(ctx, &config, client, rosters, stats)

	// Step 4: Wait for jobs and verify corrections
	if err := verifyResults(ctx, &config, client, rosters, ids, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 5: Save rosters to file
	if config.OutputFile != "" {
		if err := saveRostersToFile(ctx, config.OutputFile, rosters); err != nil {
			logger.Get().Warn(ctx, "failed to save rosters to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveRostersToFile writes the generated rosters as a JSON array.
func saveRostersToFile(ctx context.Context, filename string, rosters []Roster) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(rosters, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rosters: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write rosters: %w", err)
	}
	logger.Get().Info(ctx, "rosters saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var completionRate, recordsPerSecond float64
	if stats.JobsSubmitted > 0 {
		completionRate = float64(stats.JobsCompleted) / float64(stats.JobsSubmitted) * percentMultiplier
	}
	if stats.Duration > 0 {
		recordsPerSecond = float64(stats.RecordsGenerated) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("rostersGenerated", stats.RostersGenerated),
		logger.Int("recordsGenerated", stats.RecordsGenerated),
		logger.Int("jobsSubmitted", stats.JobsSubmitted),
		logger.Int("jobsDuplicate", stats.JobsDuplicate),
		logger.Int("jobsRejected", stats.JobsRejected),
		logger.Int("jobsCompleted", stats.JobsCompleted),
		logger.Int("jobsFailed", stats.JobsFailed),
		logger.Any("injected", stats.Injected),
		logger.Any("detected", stats.Detected),
		logger.Duration("duration", stats.Duration),
		logger.Float64("completionRate", completionRate),
		logger.Float64("recordsPerSecond", recordsPerSecond))
}

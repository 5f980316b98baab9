package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
)

// errNoJobs is returned when every roster was rejected.
var errNoJobs = errors.New("no jobs to verify")

// verifyResults waits for every accepted job and tallies the corrections the
// service reported against those injected.
func verifyResults(ctx context.Context, config *Config, client *HTTPClient, rosters []Roster, ids []string, stats *Stats) error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	sem := make(chan struct{}, config.Workers)

	pending := 0
	for index, id := range ids {
		if id == "" {
			continue
		}
		pending++
		wg.Add(1)
		sem <- struct{}{}
		go func(index int, id string) {
			defer wg.Done()
			defer func() { <-sem }()

			job, err := awaitJob(ctx, client, id, config.PollInterval)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			recordJob(ctx, config, stats, &job, rosters[index])
		}(index, id)
	}
	wg.Wait()

	if pending == 0 {
		return errNoJobs
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, kind := range missedKinds(stats.Injected, stats.Detected) {
		logger.Get().Warn(ctx, "fewer corrections reported than injected",
			logger.String("kind", kind),
			logger.Int("injected", stats.Injected[kind]),
			logger.Int("detected", stats.Detected[kind]))
	}
	return nil
}

func recordJob(ctx context.Context, config *Config, stats *Stats, job *model.Job, r Roster) { //nolint:gocritic // read-only
	if job.Status == model.JobFailed {
		stats.JobsFailed++
		logger.Get().Warn(ctx, "job failed", logger.String("id", job.ID), logger.String("error", job.Error))
		return
	}
	stats.JobsCompleted++
	for kind, n := range job.Corrections {
		stats.Detected[kind] += n
	}
	if config.Verbose {
		logger.Get().Info(ctx, "job completed",
			logger.String("id", job.ID),
			logger.Int("records", len(job.Records)),
			logger.Any("injected", r.Injected),
			logger.Any("corrections", job.Corrections))
	}
}

// missedKinds lists, in name order, the kinds detected fewer times than
// injected. Extra detections are expected: identity corrections can surface
// attribute conflicts that were already there.
func missedKinds(injected, detected map[string]int) []string {
	var out []string
	for kind, n := range injected {
		if detected[kind] < n {
			out = append(out, kind)
		}
	}
	sort.Strings(out)
	return out
}

// Missed reports the injected corrections the service did not report.
func (s *Stats) Missed() map[string]int {
	out := make(map[string]int)
	for _, kind := range missedKinds(s.Injected, s.Detected) {
		out[kind] = s.Injected[kind] - s.Detected[kind]
	}
	return out
}

// String formats the per-kind tallies for display.
func (s *Stats) String() string {
	kinds := make([]string, 0, len(s.Injected))
	for kind := range s.Injected {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	out := fmt.Sprintf("jobs: %d completed, %d failed, %d rejected", s.JobsCompleted, s.JobsFailed, s.JobsRejected)
	for _, kind := range kinds {
		out += fmt.Sprintf("\n%-16s injected %d, detected %d", kind, s.Injected[kind], s.Detected[kind])
	}
	return out
}

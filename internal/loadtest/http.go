package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
)

// errUnexpectedStatus is returned for responses outside the documented codes.
var errUnexpectedStatus = errors.New("unexpected status")

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// decodeResponse reads, decodes and closes the response body.
func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// submission is the outcome of posting one roster.
type submission struct {
	index     int
	jobID     string
	duplicate bool
	err       error
}

// submitRosters posts rosters concurrently and returns the job id per roster
// index. Rejected rosters have an empty id.
func submitRosters(ctx context.Context, config *Config, client *HTTPClient, rosters []Roster, stats *Stats) []string {
	logger.Get().Info(ctx, "submitting rosters",
		logger.Int("rosters", len(rosters)),
		logger.Int("workers", config.Workers))

	var (
		accepted  int64
		duplicate int64
		rejected  int64
	)

	ids := make([]string, len(rosters))
	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexChan {
				res := submitSingleRoster(ctx, client, index, rosters[index])
				switch {
				case res.err != nil:
					atomic.AddInt64(&rejected, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "roster rejected", logger.Int("index", index), logger.Error(res.err))
					}
				case res.duplicate:
					atomic.AddInt64(&duplicate, 1)
					ids[index] = res.jobID
				default:
					atomic.AddInt64(&accepted, 1)
					ids[index] = res.jobID
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range rosters {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.JobsAccepted = int(accepted)
	stats.JobsDuplicate = int(duplicate)
	stats.JobsRejected = int(rejected)
	stats.JobsSubmitted = stats.JobsAccepted + stats.JobsDuplicate + stats.JobsRejected

	logger.Get().Info(ctx, "roster submission completed",
		logger.Int("accepted", stats.JobsAccepted),
		logger.Int("duplicate", stats.JobsDuplicate),
		logger.Int("rejected", stats.JobsRejected))
	return ids
}

// submitSingleRoster posts one roster to POST /jobs.
func submitSingleRoster(ctx context.Context, client *HTTPClient, index int, r Roster) submission { //nolint:gocritic // read-only
	resp, err := client.Post(ctx, "/jobs", r.Submission)
	if err != nil {
		return submission{index: index, err: err}
	}

	var ack submitResponse
	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
		if err := decodeResponse(resp, &ack); err != nil {
			return submission{index: index, err: err}
		}
		return submission{index: index, jobID: ack.Job.ID, duplicate: ack.Duplicate}
	default:
		_ = resp.Body.Close()
		return submission{index: index, err: fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)}
	}
}

// awaitJob polls GET /jobs/{id} until the job is done or ctx ends.
func awaitJob(ctx context.Context, client *HTTPClient, id string, interval time.Duration) (model.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		resp, err := client.Get(ctx, "/jobs/"+id)
		if err != nil {
			return model.Job{}, err
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return model.Job{}, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		}
		var job model.Job
		if err := decodeResponse(resp, &job); err != nil {
			return model.Job{}, err
		}
		if job.Status.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return model.Job{}, fmt.Errorf("waiting for job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

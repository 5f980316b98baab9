// Package loadtest drives a running roster service with synthetic rosters
// that carry known naming and attribute errors, then checks the corrections
// the service reports against what was injected.
package loadtest

import (
	"time"

	"github.com/okian/roster/internal/domain/model"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // Base URL of the service
	NumJobs      int           // Number of rosters to submit
	Students     int           // Students per roster
	Workers      int           // Number of concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between job status polls
	OutputFile   string        // Optional file receiving the generated rosters
	Seed         uint64        // Seed for roster generation
	Verbose      bool          // Log every job outcome
}

// Roster is one generated submission together with the corrections it should
// provoke.
type Roster struct {
	Submission model.Submission `json:"submission"`
	Injected   map[string]int   `json:"injected"`
}

// submitResponse mirrors the body of POST /jobs.
type submitResponse struct {
	Job       model.Job `json:"job"`
	Duplicate bool      `json:"duplicate"`
}

// Stats holds load test statistics.
type Stats struct {
	RostersGenerated int
	RecordsGenerated int
	JobsSubmitted    int
	JobsAccepted     int
	JobsDuplicate    int
	JobsRejected     int
	JobsCompleted    int
	JobsFailed       int
	Injected         map[string]int
	Detected         map[string]int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

package model

import "time"

// JobStatus tracks a resolution job through the queue.
type JobStatus string

// Job lifecycle states.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the job has reached a terminal state.
func (s JobStatus) Done() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one submitted record list and, once processed, its corrected records
// and ordered diagnostic messages.
type Job struct {
	ID              string         `json:"id"`
	SubmissionID    string         `json:"submission_id,omitempty"`
	Status          JobStatus      `json:"status"`
	CurrentSemester string         `json:"current_semester,omitempty"`
	Records         []ScoreRecord  `json:"records"`
	Diagnostics     []string       `json:"diagnostics,omitempty"`
	Corrections     map[string]int `json:"corrections,omitempty"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// Summary returns a copy of the job without its record payload.
func (j *Job) Summary() Job {
	s := *j
	s.Records = nil
	s.Diagnostics = nil
	return s
}

// Submission is a record list handed to the service for resolution.
type Submission struct {
	// SubmissionID is an optional client key; resubmitting the same key
	// returns the job created the first time.
	SubmissionID string `json:"submission_id,omitempty"`

	// CurrentSemester, when set, limits the returned records to students
	// who have a record in that semester.
	CurrentSemester string        `json:"current_semester,omitempty"`
	Records         []ScoreRecord `json:"records"`
}

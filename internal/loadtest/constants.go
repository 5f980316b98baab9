package loadtest

import "time"

// Defaults applied by Config.withDefaults.
const (
	DefaultBaseURL      = "http://localhost:9080"
	DefaultNumJobs      = 100
	DefaultStudents     = 50
	DefaultWorkers      = 8
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Roster shape constants.
const (
	semestersPerStudent = 3
	noiseEvery          = 2 // every second student receives one injected error
	maxNameAttempts     = 100
	percentMultiplier   = 100
)

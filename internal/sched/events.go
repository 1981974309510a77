package sched

import "time"

// Event types published on the process bus for each run.
const (
	EventRunStarted       = "job.run.started"
	EventRunSucceeded     = "job.run.succeeded"
	EventRunFailed        = "job.run.failed"
	EventRetryScheduled   = "job.retry.scheduled"
	EventRetriesExhausted = "job.retries.exhausted"
)

// RunEvent is the payload carried by the run lifecycle events.
type RunEvent struct {
	JobID      string
	RunID      string
	Manual     bool
	Started    time.Time
	Duration   time.Duration
	RetryCount int
	Backoff    time.Duration // next retry delay, EventRetryScheduled only
	Error      string
}

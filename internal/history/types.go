// Package history persists job run outcomes. Schedule state itself is
// never persisted; only what a run produced, for operator forensics.
package history

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("history disabled")

// Config configures the run-outcome store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", history recording is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Keep        int           // max retained records; 0 means default (5000)
}

// RunRecord is one settled execution. Keep it compact and schema-stable.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	JobID      string    `json:"job_id"`
	Started    time.Time `json:"started"`
	DurationMS int64     `json:"duration_ms"`
	Manual     bool      `json:"manual,omitempty"`
	RetryCount int       `json:"retry_count,omitempty"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

package sched

import (
	"fmt"
	"time"
)

// Result is the settled outcome of the most recent run, sanitized for
// sharing across the health boundary.
type Result struct {
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"` // success value, sanitized
	Error string `json:"error,omitempty"` // failure reason
}

// Snapshot is a point-in-time, side-effect-free view of one job for
// operational visibility.
type Snapshot struct {
	Name             string     `json:"name"`
	Enabled          bool       `json:"enabled"`
	Status           string     `json:"status"`
	LastExecution    *time.Time `json:"last_execution,omitempty"`
	LastResult       *Result    `json:"last_result,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	RetryCount       int        `json:"retry_count"`
	RetriesExhausted bool       `json:"retries_exhausted"`
	Config           JobInfo    `json:"config"`
}

// sanitizeValue makes a job-produced value safe to hold in a snapshot.
// Plain data passes through; anything that may wrap a live handle
// (connections, channels, pointers into job internals) is replaced by its
// string form. The raw value stays inside the job's own state.
func sanitizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case time.Time, time.Duration:
		return v
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

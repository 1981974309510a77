package sched

import "context"

// JobState carries a job's own mutable state through Execute. The actor
// owns it exclusively between runs; jobs that need lookup caches or
// cursors keep them in Data instead of package-level storage, so one
// actor stays the single owner.
type JobState struct {
	Data any
}

// Job is the contract every concrete job implements. The framework
// consumes it and never implements it.
type Job interface {
	// Execute does the actual work and returns the (possibly updated)
	// state along with a result value or an error. It must be safe to
	// call repeatedly. Panics are recovered by the engine and treated
	// as execution errors with a captured stack.
	Execute(ctx context.Context, state JobState) (result any, next JobState, err error)

	// IsEnabled is the live feature gate. It must be pure, side-effect
	// free, and cheap: the engine calls it at startup and before every
	// re-arm, and introspection queries call it live.
	IsEnabled() bool

	// Config returns a descriptive snapshot for health and registry
	// introspection. It must not block.
	Config() JobInfo
}

// JobInfo describes a job for introspection.
type JobInfo struct {
	TriggerKind string `json:"trigger_kind"`
	Timing      string `json:"timing"`
	Description string `json:"description,omitempty"`
}

// Definition is the immutable per-job configuration supplied at actor
// creation. The feature gate lives on the Job itself (IsEnabled) because
// it reads live configuration.
type Definition struct {
	ID      string
	Trigger Trigger
	Retry   RetryPolicy
}

// Package sched is the recurring-job framework: one actor goroutine per
// job, a shared execution engine with retry/backoff, and pluggable
// trigger strategies (fixed interval, daily time of day).
//
// The framework never inspects what a job does. Concrete jobs implement
// the Job interface; the engine only knows how to start them, retry them,
// and report on them via health snapshots.
package sched

package sched

// Status is the actor's scheduling state.
//
// StatusExecuting is transient: the actor processes health requests only
// between runs, so a snapshot always reflects the last settled transition
// and never observes Executing.
type Status uint8

const (
	StatusDisabled Status = iota
	StatusScheduled
	StatusExecuting
	StatusRetryPending
)

func (s Status) String() string {
	switch s {
	case StatusDisabled:
		return "disabled"
	case StatusScheduled:
		return "scheduled"
	case StatusExecuting:
		return "executing"
	case StatusRetryPending:
		return "retry_pending"
	default:
		return "unknown"
	}
}

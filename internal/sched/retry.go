package sched

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy governs failure recovery for one job.
//
// MaxAttempts counts retries beyond the initial attempt: the engine
// compares the current retry count with strict < against MaxAttempts, so
// MaxAttempts retries are allowed before the job falls back to its
// normal schedule.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      bool
}

// DefaultRetryPolicy matches the registration-retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		Jitter:      true,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 15 * time.Second
	}
	return p
}

// Backoff computes the retry delay for the given retry count (0-based):
//
//	min(base * 2^retryCount * jitterFactor, max)
//
// where jitterFactor is 1 when jitter is disabled, else 1 + U(0, 0.2).
// The result is capped, never negative, and rounded to whole milliseconds.
func Backoff(p RetryPolicy, retryCount int) time.Duration {
	p = p.withDefaults()
	if retryCount < 0 {
		retryCount = 0
	}

	f := float64(p.BaseBackoff) * math.Pow(2, float64(retryCount))
	if p.Jitter {
		f *= 1 + rand.Float64()*0.2
	}

	// Float overflow maps to +Inf, which converts to a negative Duration.
	d := time.Duration(f)
	if d < 0 || d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d.Round(time.Millisecond)
}

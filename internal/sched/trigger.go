package sched

import (
	"fmt"
	"time"
)

// Trigger computes the delay until a job's next normal (non-retry) run.
// Implementations are pure: no memory of previous schedules, so timing
// reloaded from live configuration takes effect on the next computation.
type Trigger interface {
	NextDelay(now time.Time) time.Duration
	Kind() string
	Timing() string
}

// Interval fires a fixed period after "now", regardless of how long the
// previous run took. No catch-up: a slow run pushes the next start later,
// and missed ticks are never queued.
type Interval struct {
	Period time.Duration
}

func (t Interval) NextDelay(time.Time) time.Duration { return t.Period }
func (t Interval) Kind() string                      { return "interval" }
func (t Interval) Timing() string                    { return t.Period.String() }

// TimeOfDay fires once a day at Hour:Minute in now's location. If that
// moment has already passed today, it targets tomorrow.
type TimeOfDay struct {
	Hour   int // 0..23
	Minute int // 0..59
}

func (t TimeOfDay) NextDelay(now time.Time) time.Duration {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate.Sub(now).Round(time.Millisecond)
}

func (t TimeOfDay) Kind() string { return "time_of_day" }
func (t TimeOfDay) Timing() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

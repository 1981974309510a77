package main

import (
	"time"

	"schedd/internal/config"
	"schedd/internal/sched"
)

// liveTrigger resolves a job's trigger from the committed config on every
// computation, so timing edits take effect on the next re-arm without a
// restart. Falls back to a conservative interval when the job section is
// missing or unparsable (the gate is off in that case anyway).
type liveTrigger struct {
	cfgm *config.Manager
	id   string
}

func newLiveTrigger(cfgm *config.Manager, id string) sched.Trigger {
	return liveTrigger{cfgm: cfgm, id: id}
}

var fallbackTrigger = sched.Interval{Period: time.Minute}

func (t liveTrigger) resolve() sched.Trigger {
	jc, ok := t.cfgm.Job(t.id)
	if !ok {
		return fallbackTrigger
	}
	if h, m, ok := jc.DailyAt(); ok {
		return sched.TimeOfDay{Hour: h, Minute: m}
	}
	if d := jc.Interval(); d > 0 {
		return sched.Interval{Period: d}
	}
	return fallbackTrigger
}

func (t liveTrigger) NextDelay(now time.Time) time.Duration {
	return t.resolve().NextDelay(now)
}

func (t liveTrigger) Kind() string { return t.resolve().Kind() }
func (t liveTrigger) Timing() string { return t.resolve().Timing() }

// Package heartbeat ships a minimal bundled job: it logs a liveness beat
// on its interval and keeps a beat counter in its own state. Mostly
// useful as the smallest possible example of the job contract.
package heartbeat

import (
	"context"
	"fmt"

	"schedd/internal/config"
	"schedd/internal/sched"
	logx "schedd/pkg/logx"
)

const ID = "heartbeat"

type Job struct {
	cfg *config.Manager
	log logx.Logger
}

func New(cfg *config.Manager, log logx.Logger) *Job {
	return &Job{cfg: cfg, log: log.With(logx.String("job", ID))}
}

func (j *Job) Execute(ctx context.Context, state sched.JobState) (any, sched.JobState, error) {
	beats, _ := state.Data.(int)
	beats++
	j.log.Info("heartbeat", logx.Int("beat", beats))
	return fmt.Sprintf("beat %d", beats), sched.JobState{Data: beats}, nil
}

func (j *Job) IsEnabled() bool { return j.cfg.JobEnabled(ID) }

func (j *Job) Config() sched.JobInfo {
	info := sched.JobInfo{Description: "liveness heartbeat"}
	jc, ok := j.cfg.Job(ID)
	if !ok {
		return info
	}
	if jc.Description != "" {
		info.Description = jc.Description
	}
	if h, m, ok := jc.DailyAt(); ok {
		info.TriggerKind = "time_of_day"
		info.Timing = fmt.Sprintf("%02d:%02d", h, m)
	} else {
		info.TriggerKind = "interval"
		info.Timing = jc.Every
	}
	return info
}

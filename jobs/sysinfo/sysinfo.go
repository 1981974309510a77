// Package sysinfo ships a bundled job that samples host CPU and memory
// usage. It keeps a small ring of samples in its own job state rather
// than package-level storage, so the actor stays the single owner.
package sysinfo

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"schedd/internal/config"
	"schedd/internal/sched"
	logx "schedd/pkg/logx"
)

const ID = "sysinfo"

// ringSize bounds the sample history carried in job state.
const ringSize = 32

type Sample struct {
	At             time.Time `json:"at"`
	CPUPercent     float64   `json:"cpu_percent"`
	MemUsedPercent float64   `json:"mem_used_percent"`
	MemAvailable   uint64    `json:"mem_available"`
}

type Job struct {
	cfg *config.Manager
	log logx.Logger
}

func New(cfg *config.Manager, log logx.Logger) *Job {
	return &Job{cfg: cfg, log: log.With(logx.String("job", ID))}
}

func (j *Job) Execute(ctx context.Context, state sched.JobState) (any, sched.JobState, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, state, fmt.Errorf("memory stats: %w", err)
	}
	// Instantaneous reading; a measurement interval would block the actor.
	percs, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, state, fmt.Errorf("cpu stats: %w", err)
	}
	var cpuPct float64
	if len(percs) > 0 {
		cpuPct = percs[0]
	}

	s := Sample{
		At:             time.Now(),
		CPUPercent:     cpuPct,
		MemUsedPercent: v.UsedPercent,
		MemAvailable:   v.Available,
	}

	ring, _ := state.Data.([]Sample)
	ring = append(ring, s)
	if len(ring) > ringSize {
		ring = ring[len(ring)-ringSize:]
	}

	j.log.Info("system sample",
		logx.Float64("cpu_pct", s.CPUPercent),
		logx.Float64("mem_used_pct", s.MemUsedPercent),
		logx.Uint64("mem_available", s.MemAvailable))

	summary := fmt.Sprintf("cpu %.1f%%, mem %.1f%% used", s.CPUPercent, s.MemUsedPercent)
	return summary, sched.JobState{Data: ring}, nil
}

func (j *Job) IsEnabled() bool { return j.cfg.JobEnabled(ID) }

func (j *Job) Config() sched.JobInfo {
	info := sched.JobInfo{Description: "host cpu/memory sampler"}
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

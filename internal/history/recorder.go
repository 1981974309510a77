package history

import (
	"context"
	"time"

	"schedd/internal/eventbus"
	"schedd/internal/sched"
	logx "schedd/pkg/logx"
)

// Recorder subscribes to run lifecycle events and persists settled
// outcomes. It is the only writer of the store; the engine never blocks
// on persistence (the bus drops when we fall behind).
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log}
}

// Run consumes events until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	if r.store == nil || r.bus == nil {
		return nil
	}
	ch, unsub := r.bus.Subscribe(128)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev eventbus.Event) {
	if ev.Type != sched.EventRunSucceeded && ev.Type != sched.EventRunFailed {
		return
	}
	run, ok := ev.Data.(sched.RunEvent)
	if !ok {
		return
	}

	rec := RunRecord{
		RunID:      run.RunID,
		JobID:      run.JobID,
		Started:    run.Started,
		DurationMS: run.Duration.Milliseconds(),
		Manual:     run.Manual,
		RetryCount: run.RetryCount,
		OK:         ev.Type == sched.EventRunSucceeded,
		Error:      run.Error,
	}

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.store.AppendRun(wctx, rec); err != nil {
		r.log.Warn("history append failed",
			logx.String("job", rec.JobID), logx.Err(err))
	}
}

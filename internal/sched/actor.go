package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"schedd/internal/eventbus"
	logx "schedd/pkg/logx"
)

// ErrNotRunning is returned by HealthCheck when the actor loop is not up.
var ErrNotRunning = errors.New("job actor not running")

type cmdKind uint8

const (
	cmdRun cmdKind = iota
	cmdHealth
)

// command is the only way anything reaches the actor. Timer fires, manual
// triggers, and health requests share one queue, so they are processed
// strictly in arrival order.
type command struct {
	kind   cmdKind
	gen    uint64 // arming generation; zero for manual commands
	retry  int    // retry count to resume at (manual only)
	manual bool
	reply  chan Snapshot
}

// Actor owns one job's schedule and mutable state. All state below the
// mutex is touched only by the Run loop; external callers interact
// through the command queue.
type Actor struct {
	def Definition
	job Job
	log logx.Logger
	bus eventbus.Bus

	cmds chan command

	// Throttles repeated failure warnings so a flapping job doesn't
	// flood the log; excess failures drop to debug level.
	failWarn *rate.Limiter

	mu   sync.Mutex
	quit chan struct{} // closed when the current Run invocation exits

	// Run-loop owned. Reset on every (re)start: a crash-restarted actor
	// comes back with fresh state and loses its retry history.
	st       jobState
	timer    *time.Timer
	timerGen uint64
}

type jobState struct {
	status        Status
	retryCount    int
	lastExecution *time.Time
	lastResult    *Result
	lastErr       error
	exhausted     bool
	data          any
}

func NewActor(def Definition, job Job, log logx.Logger, bus eventbus.Bus) *Actor {
	return &Actor{
		def:      def,
		job:      job,
		log:      log.With(logx.String("job", def.ID)),
		bus:      bus,
		cmds:     make(chan command, 16),
		failWarn: rate.NewLimiter(rate.Every(30*time.Second), 3),
	}
}

func (a *Actor) ID() string { return a.def.ID }

// Enabled evaluates the live feature gate.
func (a *Actor) Enabled() bool { return a.job.IsEnabled() }

// Describe returns the job's descriptive config. Live, not cached.
func (a *Actor) Describe() JobInfo { return a.job.Config() }

// Run processes commands until ctx is cancelled. It is restart-safe:
// each invocation starts from fresh state.
func (a *Actor) Run(ctx context.Context) error {
	quit := make(chan struct{})
	a.mu.Lock()
	a.quit = quit
	a.mu.Unlock()
	defer close(quit)

	a.st = jobState{}
	a.timer = nil
	a.timerGen++ // discard timer fires from a previous incarnation

	if a.job.IsEnabled() {
		delay := a.def.Trigger.NextDelay(time.Now())
		a.arm(delay, StatusScheduled, quit)
		a.log.Info("job scheduled",
			logx.String("trigger", a.def.Trigger.Kind()),
			logx.String("timing", a.def.Trigger.Timing()),
			logx.Duration("first_run_in", delay))
	} else {
		a.st.status = StatusDisabled
		a.log.Info("job disabled at startup")
	}
	defer a.cancelTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-a.cmds:
			a.handle(ctx, cmd, quit)
		}
	}
}

// TriggerNow enqueues a fresh manual run (retry count 0, independent of
// any in-flight retry sequence). A no-op while the job is disabled.
func (a *Actor) TriggerNow() { a.triggerAt(0) }

// TriggerNowAt enqueues a manual run resuming at the given retry count,
// continuing an automatic retry sequence instead of starting fresh.
func (a *Actor) TriggerNowAt(retryCount int) {
	if retryCount < 0 {
		retryCount = 0
	}
	a.triggerAt(retryCount)
}

func (a *Actor) triggerAt(retryCount int) {
	quit := a.running()
	if quit == nil {
		a.log.Debug("manual trigger dropped; actor not started")
		return
	}
	select {
	case a.cmds <- command{kind: cmdRun, manual: true, retry: retryCount}:
	case <-quit:
		a.log.Debug("manual trigger dropped; actor stopped")
	default:
		a.log.Warn("manual trigger dropped; queue full",
			logx.Int("queue_len", len(a.cmds)), logx.Int("queue_cap", cap(a.cmds)))
	}
}

// HealthCheck returns a synchronous snapshot. It waits in the actor's
// command queue, so a job currently executing delays the answer until the
// run settles (the snapshot never observes a mid-run state).
func (a *Actor) HealthCheck(ctx context.Context) (Snapshot, error) {
	quit := a.running()
	if quit == nil {
		return Snapshot{}, ErrNotRunning
	}
	reply := make(chan Snapshot, 1)
	select {
	case a.cmds <- command{kind: cmdHealth, reply: reply}:
	case <-quit:
		return Snapshot{}, ErrNotRunning
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-quit:
		return Snapshot{}, ErrNotRunning
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (a *Actor) running() chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quit
}

func (a *Actor) handle(ctx context.Context, cmd command, quit chan struct{}) {
	switch cmd.kind {
	case cmdHealth:
		cmd.reply <- a.snapshot()

	case cmdRun:
		if !cmd.manual && cmd.gen != a.timerGen {
			// Stale fire from a timer that was since cancelled.
			return
		}
		if cmd.manual {
			if a.st.status == StatusDisabled {
				// Disabled is re-evaluated only here: a manual trigger
				// asks the live gate, and a flipped-on gate revives the
				// job (the settle path re-arms its normal trigger).
				if !a.job.IsEnabled() {
					a.log.Info("manual trigger ignored; job disabled")
					return
				}
				a.log.Info("feature gate back on; resuming via manual trigger")
			}
			a.st.retryCount = cmd.retry
		}
		a.execute(ctx, cmd.manual, quit)
	}
}

func (a *Actor) execute(ctx context.Context, manual bool, quit chan struct{}) {
	// Pre-empt any pending wake-up so this is the only execution; a fire
	// already sitting in the queue is discarded by the generation check.
	a.cancelTimer()

	started := time.Now()
	a.st.lastExecution = &started
	a.st.status = StatusExecuting
	runID := uuid.NewString()

	ev := RunEvent{
		JobID:      a.def.ID,
		RunID:      runID,
		Manual:     manual,
		Started:    started,
		RetryCount: a.st.retryCount,
	}
	a.publish(EventRunStarted, ev)

	result, next, err := a.runJob(ctx)
	a.st.data = next.Data
	ev.Duration = time.Since(started)

	if err == nil {
		a.st.retryCount = 0
		a.st.exhausted = false
		a.st.lastResult = &Result{OK: true, Value: sanitizeValue(result)}
		a.st.lastErr = nil
		// Avoid noisy logs for very frequent jobs: only elevate to INFO
		// when the run took noticeable time.
		if ev.Duration >= 750*time.Millisecond {
			a.log.Info("job completed", logx.Duration("dur", ev.Duration))
		} else {
			a.log.Debug("job completed", logx.Duration("dur", ev.Duration))
		}
		a.publish(EventRunSucceeded, ev)
		a.rearm(quit)
		return
	}

	a.st.lastResult = &Result{OK: false, Error: err.Error()}
	a.st.lastErr = err
	ev.Error = err.Error()
	a.publish(EventRunFailed, ev)

	if a.st.retryCount < a.def.Retry.MaxAttempts {
		backoff := Backoff(a.def.Retry, a.st.retryCount)
		a.st.retryCount++
		ev.RetryCount = a.st.retryCount
		ev.Backoff = backoff
		a.logFailure("job failed; retry scheduled", err,
			logx.Int("retry", a.st.retryCount),
			logx.Int("max_attempts", a.def.Retry.MaxAttempts),
			logx.Duration("backoff", backoff),
			logx.Duration("dur", ev.Duration))
		a.publish(EventRetryScheduled, ev)
		a.arm(backoff, StatusRetryPending, quit)
		return
	}

	// Exhausted retries settle the job back onto its normal cadence; it
	// is not disabled, and the next regular slot gets a clean attempt.
	a.st.retryCount = 0
	a.st.exhausted = true
	ev.RetryCount = 0
	a.logFailure("job failed; retries exhausted, resuming normal schedule", err,
		logx.Int("max_attempts", a.def.Retry.MaxAttempts),
		logx.Duration("dur", ev.Duration))
	a.publish(EventRetriesExhausted, ev)
	a.rearm(quit)
}

// runJob invokes Execute with panic recovery. A panicking job keeps its
// previous state data and surfaces as an execution error.
func (a *Actor) runJob(ctx context.Context) (result any, next JobState, err error) {
	next = JobState{Data: a.st.data}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			a.log.Error("panic in job execute",
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(3, 16)))
		}
	}()
	return a.job.Execute(ctx, JobState{Data: a.st.data})
}

func (a *Actor) rearm(quit chan struct{}) {
	if !a.job.IsEnabled() {
		a.cancelTimer()
		a.st.status = StatusDisabled
		a.log.Info("feature gate off; job parked")
		return
	}
	a.arm(a.def.Trigger.NextDelay(time.Now()), StatusScheduled, quit)
}

// arm replaces the pending wake-up. Invariant: at most one live timer per
// actor; arming always cancels the predecessor first.
func (a *Actor) arm(delay time.Duration, status Status, quit chan struct{}) {
	a.cancelTimer()
	gen := a.timerGen
	a.st.status = status
	if delay < 0 {
		delay = 0
	}
	a.timer = time.AfterFunc(delay, func() {
		select {
		case a.cmds <- command{kind: cmdRun, gen: gen}:
		case <-quit:
		}
	})
}

func (a *Actor) cancelTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	// A fire that slipped into the queue before Stop carries the old
	// generation and gets discarded.
	a.timerGen++
}

func (a *Actor) snapshot() Snapshot {
	snap := Snapshot{
		Name:             a.def.ID,
		Enabled:          a.job.IsEnabled(),
		Status:           a.st.status.String(),
		LastExecution:    a.st.lastExecution,
		LastResult:       a.st.lastResult,
		RetryCount:       a.st.retryCount,
		RetriesExhausted: a.st.exhausted,
		Config:           a.job.Config(),
	}
	if a.st.lastErr != nil {
		snap.LastError = a.st.lastErr.Error()
	}
	return snap
}

func (a *Actor) logFailure(msg string, err error, fields ...logx.Field) {
	all := append([]logx.Field{logx.Err(err)}, fields...)
	if a.failWarn.Allow() {
		a.log.Warn(msg, all...)
	} else {
		a.log.Debug(msg, all...)
	}
}

func (a *Actor) publish(typ string, ev RunEvent) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}

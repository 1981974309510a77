// Package registry is the process-wide directory of job actors, used for
// introspection and bulk manual triggering. It depends on nothing but the
// job contract; actors register themselves at startup.
package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"schedd/internal/sched"
	logx "schedd/pkg/logx"
)

// ErrNotRunning is returned when the registry loop is not processing.
var ErrNotRunning = errors.New("registry not running")

// Scheduler is the narrow view of a job actor the registry needs.
// Enabled and Describe are answered live by the job contract (both are
// required to be cheap and non-blocking).
type Scheduler interface {
	ID() string
	Enabled() bool
	Describe() sched.JobInfo
	TriggerNow()
}

// SchedulerInfo is one row of an introspection query.
type SchedulerInfo struct {
	ID      string        `json:"id"`
	Enabled bool          `json:"enabled"`
	Config  sched.JobInfo `json:"config"`
}

type cmdKind uint8

const (
	cmdRegister cmdKind = iota
	cmdList
	cmdExecuteAll
)

type command struct {
	kind  cmdKind
	id    string
	sch   Scheduler
	reply chan []SchedulerInfo
	done  chan struct{}
}

// Registry serializes all entry-list mutation and queries through a
// single command loop; no external locking is needed.
type Registry struct {
	log  logx.Logger
	cmds chan command

	quit atomic.Pointer[chan struct{}]
}

type entry struct {
	id string
	// Snapshot of the gate at registration time, kept for the startup
	// tally only; all decisions re-query the job live.
	enabledAtRegistration bool
	sch                   Scheduler
}

func New(log logx.Logger) *Registry {
	return &Registry{
		log:  log,
		cmds: make(chan command, 32),
	}
}

// Run processes registry commands until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	quit := make(chan struct{})
	r.quit.Store(&quit)
	defer close(quit)

	var entries []entry
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-r.cmds:
			entries = r.handle(entries, cmd)
		}
	}
}

func (r *Registry) handle(entries []entry, cmd command) []entry {
	switch cmd.kind {
	case cmdRegister:
		// Appended as-is; duplicate registration is a caller error.
		e := entry{id: cmd.id, enabledAtRegistration: cmd.sch.Enabled(), sch: cmd.sch}
		entries = append(entries, e)
		enabled := 0
		for _, it := range entries {
			if it.enabledAtRegistration {
				enabled++
			}
		}
		r.log.Info("scheduler registered",
			logx.String("id", cmd.id),
			logx.Bool("enabled", e.enabledAtRegistration),
			logx.Int("registered", len(entries)),
			logx.Int("enabled_at_registration", enabled))
		close(cmd.done)

	case cmdList:
		out := make([]SchedulerInfo, 0, len(entries))
		for _, it := range entries {
			out = append(out, SchedulerInfo{
				ID:      it.id,
				Enabled: it.sch.Enabled(),
				Config:  it.sch.Describe(),
			})
		}
		cmd.reply <- out

	case cmdExecuteAll:
		// Fire-and-forget fanout. Disabled actors ignore the trigger
		// themselves; failures stay inside each actor.
		for _, it := range entries {
			it.sch.TriggerNow()
		}
		r.log.Info("manual trigger broadcast", logx.Int("schedulers", len(entries)))
		close(cmd.done)
	}
	return entries
}

// Register appends an entry for the actor. It returns once the registry
// has processed the registration.
func (r *Registry) Register(ctx context.Context, id string, sch Scheduler) error {
	done := make(chan struct{})
	if err := r.send(ctx, command{kind: cmdRegister, id: id, sch: sch, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetAllSchedulers reports every registered actor with its live gate and
// config. A hung Describe stalls the query; the job contract requires
// both calls to be cheap.
func (r *Registry) GetAllSchedulers(ctx context.Context) ([]SchedulerInfo, error) {
	reply := make(chan []SchedulerInfo, 1)
	if err := r.send(ctx, command{kind: cmdList, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExecuteAll asynchronously sends a manual trigger to every registered
// actor.
func (r *Registry) ExecuteAll(ctx context.Context) error {
	done := make(chan struct{})
	if err := r.send(ctx, command{kind: cmdExecuteAll, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) send(ctx context.Context, cmd command) error {
	quitP := r.quit.Load()
	if quitP == nil {
		return ErrNotRunning
	}
	select {
	case r.cmds <- cmd:
		return nil
	case <-*quitP:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- Process-wide default ----

var processDefault atomic.Pointer[Registry]

// Install makes r the process-wide registry that RegisterWithRetry
// resolves. Installed once by the daemon after the loop starts.
func Install(r *Registry) { processDefault.Store(r) }

// Default returns the installed registry, or nil before Install.
func Default() *Registry { return processDefault.Load() }

// registrationPolicy is the bounded backoff for actors that start before
// the registry is available.
var registrationPolicy = sched.RetryPolicy{
	MaxAttempts: 5,
	BaseBackoff: time.Second,
	MaxBackoff:  30 * time.Second,
	Jitter:      true,
}

// RegisterWithRetry registers sch with the process-wide registry,
// retrying with exponential backoff while no registry is installed.
// After exhausting retries it gives up with a warning: the actor keeps
// running autonomously, just invisible to introspection and ExecuteAll.
func RegisterWithRetry(ctx context.Context, sch Scheduler, log logx.Logger) error {
	attempt := 0
	for {
		if r := Default(); r != nil {
			if err := r.Register(ctx, sch.ID(), sch); err != nil {
				return err
			}
			return nil
		}
		if attempt >= registrationPolicy.MaxAttempts {
			log.Warn("registry unavailable; scheduler runs unregistered",
				logx.String("id", sch.ID()),
				logx.Int("attempts", attempt))
			return ErrNotRunning
		}
		wait := sched.Backoff(registrationPolicy, attempt)
		attempt++
		log.Debug("registry unavailable; retrying registration",
			logx.String("id", sch.ID()),
			logx.Int("attempt", attempt),
			logx.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

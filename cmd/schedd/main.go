package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"schedd/internal/config"
	"schedd/internal/eventbus"
	"schedd/internal/history"
	"schedd/internal/runtime/supervisor"
	"schedd/internal/sched"
	"schedd/internal/sched/registry"
	"schedd/jobs/heartbeat"
	"schedd/jobs/sysinfo"
	logx "schedd/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		fmt.Println("fatal: config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println("fatal: config:", err)
		os.Exit(1)
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	defer logSvc.Close()

	cfgm.SetLogger(log.With(logx.String("svc", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	bus := eventbus.New()
	sup := supervisor.New(ctx, supervisor.WithLogger(log.With(logx.String("svc", "supervisor"))))

	// Registry first so actors find it on their initial registration try.
	reg := registry.New(log.With(logx.String("svc", "registry")))
	sup.Go("registry", reg.Run)
	registry.Install(reg)

	// Optional run-outcome store fed from the event bus.
	store, err := history.Open(historyConfig(cfg), log.With(logx.String("svc", "history")))
	if err != nil {
		log.Warn("history store unavailable; continuing without", logx.Err(err))
	}
	if store != nil {
		defer store.Close()
		rec := history.NewRecorder(store, bus, log.With(logx.String("svc", "history")))
		sup.Go("history", rec.Run)
	}

	sup.Go("config.watch", cfgm.Watch)

	// Re-apply logging on config reloads. Job gates and timing read the
	// committed config live and need no push.
	sub := cfgm.Subscribe(4)
	sup.Go("config.apply", func(ctx context.Context) error {
		defer cfgm.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return nil
			case c, ok := <-sub:
				if !ok {
					return nil
				}
				logSvc.Apply(loggingConfig(c))
			}
		}
	})

	// Bundled jobs. Each actor runs under GoRestart: a crashed actor
	// restarts with fresh state (retry history intentionally lost).
	bundled := []sched.Job{
		heartbeat.New(cfgm, log),
		sysinfo.New(cfgm, log),
	}
	ids := []string{heartbeat.ID, sysinfo.ID}
	for i, job := range bundled {
		id := ids[i]
		def := sched.Definition{
			ID:      id,
			Trigger: newLiveTrigger(cfgm, id),
			Retry:   retryPolicy(cfgm, id),
		}
		actor := sched.NewActor(def, job, log, bus)
		sup.GoRestart("job."+id, actor.Run)
		sup.Go("register."+id, func(ctx context.Context) error {
			// Failure leaves the actor running unregistered; already logged.
			_ = registry.RegisterWithRetry(ctx, actor, log)
			return nil
		})
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		sup.Go("watchdog", func(ctx context.Context) error {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	log.Info("schedd started",
		logx.Int("jobs", len(bundled)),
		logx.String("config", cfgPath))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := sup.Stop(stopCtx); err != nil {
		log.Warn("shutdown timed out", logx.Err(err))
	}
	log.Info("schedd stopped")
}

func loggingConfig(c *config.Config) logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

func historyConfig(c *config.Config) history.Config {
	if c.History == nil {
		return history.Config{}
	}
	busy, _ := config.ParseDurationField("history.busy_timeout", c.History.BusyTimeout)
	return history.Config{
		Driver:      c.History.Driver,
		Path:        c.History.Path,
		BusyTimeout: busy,
		Keep:        c.History.Keep,
	}
}

func retryPolicy(cfgm *config.Manager, id string) sched.RetryPolicy {
	p := sched.RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  15 * time.Second,
		Jitter:      true,
	}
	jc, ok := cfgm.Job(id)
	if !ok || jc.Retry == nil {
		return p
	}
	r := jc.Retry
	p.MaxAttempts = r.MaxAttempts
	if d, err := config.ParseDurationOrDefault("retry.base_backoff", r.BaseBackoff, p.BaseBackoff); err == nil {
		p.BaseBackoff = d
	}
	if d, err := config.ParseDurationOrDefault("retry.max_backoff", r.MaxBackoff, p.MaxBackoff); err == nil {
		p.MaxBackoff = d
	}
	if r.Jitter != nil {
		p.Jitter = *r.Jitter
	}
	return p
}

package history

import (
	"context"
	"testing"
	"time"

	"schedd/internal/eventbus"
	"schedd/internal/sched"
	logx "schedd/pkg/logx"
)

func TestRecorderPersistsSettledOutcomesOnly(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t, 100)
	rc := NewRecorder(st, eventbus.New(), logx.Nop())
	ctx := context.Background()

	started := time.Date(2026, time.June, 3, 9, 0, 0, 0, time.UTC)
	deliver := func(typ, runID, errMsg string) {
		rc.record(ctx, eventbus.Event{Type: typ, Data: sched.RunEvent{
			JobID:    "demo",
			RunID:    runID,
			Started:  started,
			Duration: 42 * time.Millisecond,
			Error:    errMsg,
		}})
	}

	// Intermediate lifecycle events must not produce records.
	deliver(sched.EventRunStarted, "r1", "")
	deliver(sched.EventRetryScheduled, "r1", "boom")
	deliver(sched.EventRunSucceeded, "r1", "")
	deliver(sched.EventRunFailed, "r2", "boom")
	// Foreign payloads are ignored, not fatal.
	rc.record(ctx, eventbus.Event{Type: sched.EventRunSucceeded, Data: "not a run event"})

	recs, err := st.RecentRuns(ctx, "demo", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	// Newest first: the failure came last.
	if recs[0].RunID != "r2" || recs[0].OK || recs[0].Error != "boom" {
		t.Fatalf("failure record wrong: %+v", recs[0])
	}
	if recs[1].RunID != "r1" || !recs[1].OK || recs[1].Error != "" {
		t.Fatalf("success record wrong: %+v", recs[1])
	}
	if recs[1].DurationMS != 42 {
		t.Fatalf("DurationMS = %d, want 42", recs[1].DurationMS)
	}
}

func TestRecorderRunEndToEnd(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t, 100)
	bus := eventbus.New()
	rc := NewRecorder(st, bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// The subscription races with the publish; keep emitting until one
	// event lands, then assert on content rather than count.
	deadline := time.Now().Add(3 * time.Second)
	for {
		bus.Publish(eventbus.Event{Type: sched.EventRunSucceeded, Data: sched.RunEvent{
			JobID:   "live",
			RunID:   "run",
			Started: time.Now(),
		}})
		recs, err := st.RecentRuns(context.Background(), "live", 1)
		if err != nil {
			t.Fatalf("RecentRuns: %v", err)
		}
		if len(recs) == 1 {
			if !recs[0].OK || recs[0].JobID != "live" {
				t.Fatalf("persisted record wrong: %+v", recs[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("recorder never persisted a published event")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecorderNoStoreIsNoop(t *testing.T) {
	t.Parallel()
	rc := NewRecorder(nil, eventbus.New(), logx.Nop())
	if err := rc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

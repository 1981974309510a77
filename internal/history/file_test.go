package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "schedd/pkg/logx"
)

func openTestFileStore(t *testing.T, keep int) Store {
	t.Helper()
	st, err := Open(Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "history.jsonl"),
		Keep:   keep,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func rec(jobID, runID string, started time.Time, ok bool) RunRecord {
	r := RunRecord{
		RunID:      runID,
		JobID:      jobID,
		Started:    started,
		DurationMS: 12,
		OK:         ok,
	}
	if !ok {
		r.Error = "boom"
	}
	return r
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) = %T, want nil store", driver, st)
		}
	}
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreAppendAndRecent(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t, 100)
	ctx := context.Background()
	base := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		job := "alpha"
		if i%2 == 1 {
			job = "beta"
		}
		r := rec(job, string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute), i != 2)
		if err := st.AppendRun(ctx, r); err != nil {
			t.Fatalf("AppendRun(%d): %v", i, err)
		}
	}

	all, err := st.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d records, want 5", len(all))
	}
	// Newest first.
	if all[0].RunID != "e" || all[4].RunID != "a" {
		t.Fatalf("unexpected order: first=%s last=%s", all[0].RunID, all[4].RunID)
	}
	if all[2].OK || all[2].Error != "boom" {
		t.Fatalf("failed record not preserved: %+v", all[2])
	}

	alpha, err := st.RecentRuns(ctx, "alpha", 10)
	if err != nil {
		t.Fatalf("RecentRuns(alpha): %v", err)
	}
	if len(alpha) != 3 {
		t.Fatalf("got %d alpha records, want 3", len(alpha))
	}
	for _, r := range alpha {
		if r.JobID != "alpha" {
			t.Fatalf("filter leaked record: %+v", r)
		}
	}

	limited, err := st.RecentRuns(ctx, "", 2)
	if err != nil {
		t.Fatalf("RecentRuns(limit 2): %v", err)
	}
	if len(limited) != 2 || limited[0].RunID != "e" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestFileStoreSkipsTornLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	if err := st.AppendRun(ctx, rec("job", "good-1", time.Now(), true)); err != nil {
		t.Fatalf("AppendRun: %v", err)
	}

	// Simulate a crash mid-write: an unterminated JSON fragment.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := f.WriteString(`{"run_id":"torn`); err != nil {
		t.Fatalf("write torn line: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	recs, err := st.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recs) != 1 || recs[0].RunID != "good-1" {
		t.Fatalf("torn line not skipped: %+v", recs)
	}
}

func TestFileStoreCompaction(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t, 10)
	ctx := context.Background()

	// Compaction triggers on the 500th write and keeps only the newest.
	for i := 0; i < 500; i++ {
		r := RunRecord{RunID: "r", JobID: "bulk", Started: time.Now(), OK: true}
		if err := st.AppendRun(ctx, r); err != nil {
			t.Fatalf("AppendRun(%d): %v", i, err)
		}
	}

	recs, err := st.RecentRuns(ctx, "", 1000)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recs) != 10 {
		t.Fatalf("got %d records after compaction, want 10", len(recs))
	}

	// Appends keep working on the reopened handle.
	if err := st.AppendRun(ctx, rec("bulk", "after", time.Now(), true)); err != nil {
		t.Fatalf("AppendRun after compaction: %v", err)
	}
	recs, err = st.RecentRuns(ctx, "", 1000)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recs) != 11 || recs[0].RunID != "after" {
		t.Fatalf("post-compaction append missing: %d records", len(recs))
	}
}

func TestFileStoreClosedAppend(t *testing.T) {
	t.Parallel()
	st := openTestFileStore(t, 10)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.AppendRun(context.Background(), rec("x", "y", time.Now(), true)); err != ErrDisabled {
		t.Fatalf("AppendRun after Close = %v, want ErrDisabled", err)
	}
}

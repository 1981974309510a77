package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  level: debug
  console: true
history:
  driver: file
  path: ./history.jsonl
jobs:
  heartbeat:
    enabled: true
    every: 90s
  report:
    enabled: false
    at: "06:30"
    retry:
      max_attempts: 4
      base_backoff: 2s
      jitter: false
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.History == nil || cfg.History.Driver != "file" {
		t.Fatalf("history = %+v", cfg.History)
	}

	hb, ok := cfg.Jobs["heartbeat"]
	if !ok || !hb.Enabled {
		t.Fatalf("heartbeat = %+v (ok=%v)", hb, ok)
	}
	if hb.Interval() != 90*time.Second {
		t.Fatalf("heartbeat Interval = %v, want 90s", hb.Interval())
	}

	rep := cfg.Jobs["report"]
	h, min, ok := rep.DailyAt()
	if !ok || h != 6 || min != 30 {
		t.Fatalf("report DailyAt = %d:%d (ok=%v)", h, min, ok)
	}
	if rep.Retry == nil || rep.Retry.MaxAttempts != 4 {
		t.Fatalf("report retry = %+v", rep.Retry)
	}
	if rep.Retry.Jitter == nil || *rep.Retry.Jitter {
		t.Fatal("report retry jitter should be explicit false")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json",
		`{"logging":{"level":"info","console":true},"jobs":{"tick":{"enabled":true,"every":"1m"}}}`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.JobEnabled("tick") {
		t.Fatal("tick should be enabled")
	}
	if cfg.Jobs["tick"].Interval() != time.Minute {
		t.Fatalf("tick Interval = %v", cfg.Jobs["tick"].Interval())
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json",
		`{"logging":{"level":"info"},"jobz":{}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"jobs":{}} {"jobs":{}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidateJobConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		jc      JobConfig
		wantErr string
	}{
		{"every only", JobConfig{Every: "30s"}, ""},
		{"at only", JobConfig{At: "23:59"}, ""},
		{"neither", JobConfig{}, "exactly one"},
		{"both", JobConfig{Every: "30s", At: "12:00"}, "exactly one"},
		{"bad duration", JobConfig{Every: "thirty"}, "invalid duration"},
		{"zero interval", JobConfig{Every: "0s"}, "must be > 0"},
		{"bad hour", JobConfig{At: "24:00"}, "invalid hour"},
		{"bad minute", JobConfig{At: "12:60"}, "invalid minute"},
		{"negative retries", JobConfig{Every: "30s", Retry: &RetryConfig{MaxAttempts: -1}}, "max_attempts"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.jc.validate("jobs.test")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validate error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestJobEnabledUnknownAndUncommitted(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	if m.JobEnabled("anything") {
		t.Fatal("uncommitted manager should gate everything off")
	}
	m.Commit(&Config{Jobs: map[string]JobConfig{"on": {Enabled: true, Every: "1m"}}})
	if !m.JobEnabled("on") {
		t.Fatal("committed enabled job should be on")
	}
	if m.JobEnabled("missing") {
		t.Fatal("unknown job should be off")
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM(" 07:05 ")
	if err != nil {
		t.Fatalf("parseHHMM: %v", err)
	}
	if h != 7 || m != 5 {
		t.Fatalf("parseHHMM = %d:%d", h, m)
	}
	for _, bad := range []string{"7", "aa:bb", "-1:00", "12:99", "1:2:3"} {
		if _, _, err := parseHHMM(bad); err == nil {
			t.Fatalf("parseHHMM(%q): expected error", bad)
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("f", ""); err != nil || d != 0 {
		t.Fatalf("empty field = (%v, %v), want (0, nil)", d, err)
	}
	if _, err := ParseDurationField("f", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if d, err := ParseDurationOrDefault("f", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default = (%v, %v), want (7s, nil)", d, err)
	}
}

func TestSubscribePublishDropsOldest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{}
	second := &Config{Jobs: map[string]JobConfig{"x": {Enabled: true, Every: "1m"}}}
	m.publish(first)
	m.publish(second) // buffer full: the stale config gets displaced

	got := <-ch
	if got != second {
		t.Fatal("subscriber should receive the newest config")
	}
}

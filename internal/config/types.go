package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// History controls the optional run-outcome store.
	// If the whole section is omitted, history recording is disabled.
	History *HistoryConfig `json:"history,omitempty"`

	// Jobs maps job ID to its schedule, gate, and retry policy.
	Jobs map[string]JobConfig `json:"jobs"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HistoryConfig controls the optional persistence of run outcomes.
//
// Example:
//
//	"history": { "driver": "sqlite", "path": "./schedd_history.db" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Keep        int    `json:"keep,omitempty"`         // max retained records (0 = default)
}

// JobConfig declares one recurring job.
//
// Exactly one of Every / At must be set:
//   - Every: fixed interval, Go duration string (e.g. "90s", "15m")
//   - At: daily time of day, "HH:MM" (24h clock)
//
// Enabled is the live feature gate. It is re-read from the committed config
// before every re-arm, so flipping it in the config file takes effect without
// a restart.
type JobConfig struct {
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`

	Every string `json:"every,omitempty"`
	At    string `json:"at,omitempty"`

	Retry *RetryConfig `json:"retry,omitempty"`
}

// RetryConfig mirrors the engine's retry policy.
// Durations are Go duration strings. Jitter is a pointer so "omitted"
// (default true) is distinguishable from an explicit false.
type RetryConfig struct {
	MaxAttempts int    `json:"max_attempts"`
	BaseBackoff string `json:"base_backoff,omitempty"`
	MaxBackoff  string `json:"max_backoff,omitempty"`
	Jitter      *bool  `json:"jitter,omitempty"`
}

// Validate checks the whole config for structural problems.
// Used as the watch validator so a broken edit never gets committed.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	for id, jc := range c.Jobs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("jobs: empty job id")
		}
		if err := jc.validate("jobs." + id); err != nil {
			return err
		}
	}
	if c.History != nil {
		if _, err := ParseDurationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

func (jc JobConfig) validate(path string) error {
	hasEvery := strings.TrimSpace(jc.Every) != ""
	hasAt := strings.TrimSpace(jc.At) != ""
	if hasEvery == hasAt {
		return fmt.Errorf("%s: exactly one of every/at must be set", path)
	}
	if hasEvery {
		d, err := ParseDurationField(path+".every", jc.Every)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("%s.every: must be > 0", path)
		}
	}
	if hasAt {
		if _, _, err := parseHHMM(jc.At); err != nil {
			return fmt.Errorf("%s.at: %w", path, err)
		}
	}
	if jc.Retry != nil {
		if jc.Retry.MaxAttempts < 0 {
			return fmt.Errorf("%s.retry.max_attempts: must be >= 0", path)
		}
		if _, err := ParseDurationField(path+".retry.base_backoff", jc.Retry.BaseBackoff); err != nil {
			return err
		}
		if _, err := ParseDurationField(path+".retry.max_backoff", jc.Retry.MaxBackoff); err != nil {
			return err
		}
	}
	return nil
}

// Interval returns the parsed Every duration (0 when the job uses At).
func (jc JobConfig) Interval() time.Duration {
	d, err := ParseDurationField("every", jc.Every)
	if err != nil {
		return 0
	}
	return d
}

// DailyAt returns the parsed At time of day. ok is false when the job
// uses Every instead.
func (jc JobConfig) DailyAt() (hour, minute int, ok bool) {
	if strings.TrimSpace(jc.At) == "" {
		return 0, 0, false
	}
	h, m, err := parseHHMM(jc.At)
	if err != nil {
		return 0, 0, false
	}
	return h, m, true
}

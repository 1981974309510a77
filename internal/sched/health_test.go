package sched

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestSanitizeValue(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	ip := net.ParseIP("10.0.0.1")

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, 42},
		{"uint64", uint64(7), uint64(7)},
		{"float", 3.5, 3.5},
		{"string", "ok", "ok"},
		{"time", ts, ts},
		{"duration", 5 * time.Second, 5 * time.Second},
		{"error", errors.New("boom"), "boom"},
		{"stringer", ip, "10.0.0.1"},
		{"struct falls back to string form", struct{ N int }{3}, "{3}"},
		{"map falls back to string form", map[string]int{"a": 1}, "map[a:1]"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := sanitizeValue(tt.in); got != tt.want {
				t.Fatalf("sanitizeValue(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		st   Status
		want string
	}{
		{StatusDisabled, "disabled"},
		{StatusScheduled, "scheduled"},
		{StatusExecuting, "executing"},
		{StatusRetryPending, "retry_pending"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Fatalf("Status(%d).String() = %q, want %q", tt.st, got, tt.want)
		}
	}
}

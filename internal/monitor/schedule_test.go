package monitor

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		source string
		every  time.Duration
	}{
		{name: "cron", raw: "*/10 * * * *", source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", source: "cron"},
		{name: "descriptor", raw: "@hourly", source: "cron"},
		{name: "at every", raw: "@every 10m", source: "cron"},
		{name: "duration", raw: "10m", source: "duration", every: 10 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", source: "duration", every: 45 * time.Second},
		{name: "prefixed every", raw: "every:2h30m", source: "duration", every: 2*time.Hour + 30*time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.source == "duration" && got.Every() != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every(), tt.every)
			}
			if got.String() != tt.raw {
				t.Fatalf("String = %q, want %q", got.String(), tt.raw)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "cron:", "500ms", "interval:0s"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestScheduleNext(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 30, 12, 0, 30, 0, time.UTC)

	interval, err := ParseSchedule("10m")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	if got := interval.Next(now); !got.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("interval Next = %v, want %v", got, now.Add(10*time.Minute))
	}

	cronSched, err := ParseSchedule("*/10 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	want := time.Date(2026, 8, 30, 12, 10, 0, 0, time.UTC)
	if got := cronSched.Next(now); !got.Equal(want) {
		t.Fatalf("cron Next = %v, want %v", got, want)
	}
}

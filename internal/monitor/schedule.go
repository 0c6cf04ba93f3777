package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field crontab expressions plus descriptors
// like "@hourly" and "@every 10m".
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule is a parsed poll schedule.
//
// Supported forms:
//   - Cron (crontab.guru-style): "*/10 * * * *", "@hourly", "@every 10m"
//   - Interval duration: "10m", "2h30m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Schedule struct {
	raw    string
	every  time.Duration
	cron   cron.Schedule
	Source string // "cron" | "duration"
}

func (s Schedule) String() string { return s.raw }

// Every returns the interval for duration schedules (0 for cron schedules).
func (s Schedule) Every() time.Duration { return s.every }

// Next returns the next cycle time strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	if s.cron != nil {
		return s.cron.Next(t)
	}
	return t.Add(s.every)
}

// ParseSchedule parses a schedule string into either a cron expression or an
// interval duration.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Schedule{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(raw, expr)
	}
	for _, p := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, p) {
			return parseInterval(raw, strings.TrimSpace(s[len(p):]))
		}
	}

	// Heuristics: any whitespace or leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(raw, s)
	}
	return parseInterval(raw, s)
}

func parseCron(raw, expr string) (Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return Schedule{raw: raw, cron: sched, Source: "cron"}, nil
}

func parseInterval(raw, v string) (Schedule, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid interval %q: %w", v, err)
	}
	if d < time.Second {
		return Schedule{}, fmt.Errorf("interval %q too short (min 1s)", v)
	}
	return Schedule{raw: raw, every: d, Source: "duration"}, nil
}

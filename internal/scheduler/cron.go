package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron expressions and descriptors like
// @hourly or @every 30s.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression and returns a Schedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// NextTime returns the next fire time after the given time for the schedule.
func NextTime(schedule cron.Schedule, after time.Time) time.Time {
	return schedule.Next(after)
}

// interval fires every d after the previous activation. Unlike
// cron.ConstantDelaySchedule it keeps sub-second precision.
type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// Every returns a schedule firing at a fixed period.
func Every(d time.Duration) cron.Schedule {
	return interval(d)
}

// Resolve picks the refresh schedule: a non-empty cron expression wins over
// the fixed period.
func Resolve(period time.Duration, expr string) (cron.Schedule, error) {
	if expr = strings.TrimSpace(expr); expr != "" {
		s, err := ParseSchedule(expr)
		if err != nil {
			return nil, fmt.Errorf("parse refresh schedule %q: %w", expr, err)
		}
		return s, nil
	}
	if period <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", period)
	}
	return Every(period), nil
}

// Package format renders durations, timestamps and counts for display.
package format

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Placeholder is shown where no value can be computed.
const Placeholder = "—"

// TimestampLayout is the display layout for start and end times.
const TimestampLayout = "Jan 2, 15:04:05"

// Duration renders end-start as "Xh Ym", "Xm Ys" or "Xs", truncated to whole
// seconds. A negative span renders as Placeholder.
func Duration(start, end time.Time) string {
	d := end.Sub(start)
	if d < 0 {
		return Placeholder
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// Elapsed renders how long a run took. Runs without an end time are measured
// against now and marked "(running)" when running is set; otherwise they have
// no duration.
func Elapsed(start time.Time, end *time.Time, running bool, now time.Time) string {
	if end != nil {
		return Duration(start, *end)
	}
	if running {
		return Duration(start, now) + " (running)"
	}
	return Placeholder
}

// Timestamp renders t in the local zone, or Placeholder for the zero time.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Local().Format(TimestampLayout)
}

// TimestampPtr is Timestamp for optional times.
func TimestampPtr(t *time.Time) string {
	if t == nil {
		return Placeholder
	}
	return Timestamp(*t)
}

// Ago renders t relative to now, e.g. "5 seconds ago".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Count renders n with thousands separators.
func Count(n int64) string {
	return humanize.Comma(n)
}

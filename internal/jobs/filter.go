package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FilterField names one editable field of a Filter.
type FilterField string

const (
	FieldJobName       FilterField = "jobName"
	FieldRunID         FilterField = "runId"
	FieldStartTimeFrom FilterField = "startTimeFrom"
	FieldStartTimeTo   FilterField = "startTimeTo"
)

// FilterFields lists every field in form order.
var FilterFields = []FilterField{FieldJobName, FieldRunID, FieldStartTimeFrom, FieldStartTimeTo}

var (
	// ErrUnknownField is returned for a field name outside FilterFields.
	ErrUnknownField = errors.New("unknown filter field")
	// ErrInvalidBound is returned when a time bound cannot be parsed.
	ErrInvalidBound = errors.New("invalid time bound")
)

// Filter holds the raw, user-entered filter values. Empty means no constraint.
type Filter struct {
	JobName       string `json:"jobName,omitempty"`
	RunID         string `json:"runId,omitempty"`
	StartTimeFrom string `json:"startTimeFrom,omitempty"`
	StartTimeTo   string `json:"startTimeTo,omitempty"`
}

// Get returns the raw value of field.
func (f Filter) Get(field FilterField) (string, error) {
	switch field {
	case FieldJobName:
		return f.JobName, nil
	case FieldRunID:
		return f.RunID, nil
	case FieldStartTimeFrom:
		return f.StartTimeFrom, nil
	case FieldStartTimeTo:
		return f.StartTimeTo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
}

// Set stores value verbatim in field.
func (f *Filter) Set(field FilterField, value string) error {
	switch field {
	case FieldJobName:
		f.JobName = value
	case FieldRunID:
		f.RunID = value
	case FieldStartTimeFrom:
		f.StartTimeFrom = value
	case FieldStartTimeTo:
		f.StartTimeTo = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// IsEmpty reports whether no field carries a constraint.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.JobName) == "" &&
		strings.TrimSpace(f.RunID) == "" &&
		strings.TrimSpace(f.StartTimeFrom) == "" &&
		strings.TrimSpace(f.StartTimeTo) == ""
}

// Bounds parses the start-time bounds. A date-only upper bound is moved to
// the last instant of that day.
func (f Filter) Bounds(loc *time.Location) (from, to *time.Time, err error) {
	from, err = ParseBound(f.StartTimeFrom, false, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("startTimeFrom: %w", err)
	}
	to, err = ParseBound(f.StartTimeTo, true, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("startTimeTo: %w", err)
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, fmt.Errorf("%w: startTimeFrom is after startTimeTo", ErrInvalidBound)
	}
	return from, to, nil
}

const (
	dateLayout   = "2006-01-02"
	minuteLayout = "2006-01-02T15:04"
	secondLayout = "2006-01-02T15:04:05"
)

// ParseBound parses a time bound in one of the accepted layouts: RFC 3339,
// YYYY-MM-DDTHH:MM[:SS] or YYYY-MM-DD. Blank input yields nil.
func ParseBound(value string, endOfDay bool, loc *time.Location) (*time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t, nil
	}
	for _, layout := range []string{secondLayout, minuteLayout} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return &t, nil
		}
	}
	t, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBound, value)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

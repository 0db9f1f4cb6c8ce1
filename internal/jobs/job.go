// Package jobs holds the job-execution vocabulary shared by the monitoring
// client and the reference backend: records, statuses, filters, queries,
// pages and per-status stats.
package jobs

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the lifecycle state of a job execution.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusUnknown Status = "UNKNOWN"
)

// ErrInvalidStatus is returned when a status string is not recognized.
var ErrInvalidStatus = errors.New("invalid status")

// ParseStatus parses a status name case-insensitively. UNKNOWN is accepted
// so that records reported with an unexpected state can still be filtered.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusRunning:
		return StatusRunning, nil
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusUnknown:
		return StatusUnknown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// normalizeStatus maps anything unrecognized to StatusUnknown.
func normalizeStatus(s string) Status {
	st, err := ParseStatus(s)
	if err != nil {
		return StatusUnknown
	}
	return st
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// UnmarshalJSON decodes a status, mapping unrecognized values to UNKNOWN.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = normalizeStatus(raw)
	return nil
}

// Tab is a status bucket the job list can be narrowed to.
type Tab string

const (
	TabAll     Tab = "ALL"
	TabRunning Tab = "RUNNING"
	TabSuccess Tab = "SUCCESS"
	TabFailed  Tab = "FAILED"
)

// Tabs lists the selectable tabs in display order.
var Tabs = []Tab{TabAll, TabRunning, TabSuccess, TabFailed}

// ParseTab parses a tab name case-insensitively.
func ParseTab(s string) (Tab, error) {
	t := Tab(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid tab %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of Tabs.
func (t Tab) Valid() bool {
	for _, v := range Tabs {
		if t == v {
			return true
		}
	}
	return false
}

// Status returns the status filter implied by the tab. ALL implies none.
func (t Tab) Status() (Status, bool) {
	switch t {
	case TabRunning:
		return StatusRunning, true
	case TabSuccess:
		return StatusSuccess, true
	case TabFailed:
		return StatusFailed, true
	}
	return "", false
}

// Job is a single job execution as observed at fetch time.
type Job struct {
	ID           int64      `json:"id"`
	JobName      string     `json:"jobName"`
	RunID        string     `json:"runId"`
	Status       Status     `json:"status"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// Clone returns a copy that shares no memory with j.
func (j Job) Clone() Job {
	if j.EndTime != nil {
		t := *j.EndTime
		j.EndTime = &t
	}
	return j
}

// NewRunID generates a new ULID-based run identifier.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

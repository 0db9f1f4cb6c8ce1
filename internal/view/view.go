// Package view projects engine state into display-ready rows and captions.
// Nothing here fetches or mutates engine state; column sorting reorders only
// the rows already on the current page.
package view

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickspencer/runwatch/internal/client"
	"github.com/patrickspencer/runwatch/internal/format"
	"github.com/patrickspencer/runwatch/internal/jobs"
)

// Column is a table column.
type Column int

const (
	ColumnNone Column = iota
	ColumnStatus
	ColumnJobName
	ColumnRunID
	ColumnStarted
	ColumnEnded
	ColumnDuration
)

// Columns lists the table columns in display order.
var Columns = []Column{ColumnStatus, ColumnJobName, ColumnRunID, ColumnStarted, ColumnEnded, ColumnDuration}

var columnTitles = map[Column]string{
	ColumnStatus:   "Status",
	ColumnJobName:  "Job Name",
	ColumnRunID:    "Run ID",
	ColumnStarted:  "Started",
	ColumnEnded:    "Ended",
	ColumnDuration: "Duration",
}

func (c Column) String() string {
	if t, ok := columnTitles[c]; ok {
		return t
	}
	return ""
}

// ColumnSort orders the visible rows. The zero value keeps server order.
type ColumnSort struct {
	Column Column
	Desc   bool
}

// Next cycles to the following column, wrapping back to server order.
func (s ColumnSort) Next() ColumnSort {
	if s.Column >= ColumnDuration {
		return ColumnSort{}
	}
	return ColumnSort{Column: s.Column + 1, Desc: s.Desc}
}

// Toggle flips the direction.
func (s ColumnSort) Toggle() ColumnSort {
	s.Desc = !s.Desc
	return s
}

// Label describes the sort for a status line.
func (s ColumnSort) Label() string {
	if s.Column == ColumnNone {
		return "server order"
	}
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return s.Column.String() + " " + dir
}

// InProgress is shown in the Ended column of a running execution.
const InProgress = "In progress…"

// Row is one formatted table row.
type Row struct {
	ID           int64
	Status       jobs.Status
	JobName      string
	RunID        string
	Started      string
	Ended        string
	Duration     string
	ErrorMessage string
}

// Cells returns the row's values in Columns order.
func (r Row) Cells() []string {
	return []string{string(r.Status), r.JobName, r.RunID, r.Started, r.Ended, r.Duration}
}

// Project sorts a copy of rows by s and formats them. rows is not modified.
func Project(rows []jobs.Job, s ColumnSort, now time.Time) []Row {
	sorted := make([]jobs.Job, len(rows))
	copy(sorted, rows)
	if s.Column != ColumnNone {
		sort.SliceStable(sorted, func(i, j int) bool {
			c := compare(sorted[i], sorted[j], s.Column, now)
			if s.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	out := make([]Row, len(sorted))
	for i, j := range sorted {
		out[i] = project(j, now)
	}
	return out
}

func project(j jobs.Job, now time.Time) Row {
	running := j.Status == jobs.StatusRunning
	ended := format.TimestampPtr(j.EndTime)
	if j.EndTime == nil && running {
		ended = InProgress
	}
	return Row{
		ID:           j.ID,
		Status:       j.Status,
		JobName:      j.JobName,
		RunID:        j.RunID,
		Started:      format.Timestamp(j.StartTime),
		Ended:        ended,
		Duration:     format.Elapsed(j.StartTime, j.EndTime, running, now),
		ErrorMessage: j.ErrorMessage,
	}
}

func compare(a, b jobs.Job, c Column, now time.Time) int {
	switch c {
	case ColumnStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case ColumnJobName:
		return strings.Compare(strings.ToLower(a.JobName), strings.ToLower(b.JobName))
	case ColumnRunID:
		return strings.Compare(a.RunID, b.RunID)
	case ColumnStarted:
		return a.StartTime.Compare(b.StartTime)
	case ColumnEnded:
		return compareEnd(a.EndTime, b.EndTime)
	case ColumnDuration:
		da, db := elapsed(a, now), elapsed(b, now)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
	}
	return 0
}

// compareEnd orders unfinished executions after finished ones.
func compareEnd(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func elapsed(j jobs.Job, now time.Time) time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	if j.Status == jobs.StatusRunning {
		return now.Sub(j.StartTime)
	}
	return -1
}

// TabLabel renders a tab with its count, e.g. "Failed (2)".
func TabLabel(t jobs.Tab, s jobs.Stats) string {
	return fmt.Sprintf("%s (%s)", TabTitle(t), format.Count(s.Count(t)))
}

// TabTitle is the human name of a tab.
func TabTitle(t jobs.Tab) string {
	switch t {
	case jobs.TabRunning:
		return "Running"
	case jobs.TabSuccess:
		return "Successful"
	case jobs.TabFailed:
		return "Failed"
	}
	return "All"
}

// RefreshCaption describes the poll cadence, e.g. "Live · every 60s".
func RefreshCaption(interval time.Duration, schedule string) string {
	if s := strings.TrimSpace(schedule); s != "" {
		return "Live · " + s
	}
	if interval%time.Second == 0 {
		return fmt.Sprintf("Live · every %ds", int64(interval/time.Second))
	}
	return "Live · every " + interval.String()
}

// ErrorBanner renders a fetch failure for the persistent banner.
func ErrorBanner(err error) string {
	if err == nil {
		return ""
	}
	var be *client.BackendError
	if errors.As(err, &be) {
		if be.Message != "" {
			return fmt.Sprintf("Backend error (%d): %s", be.StatusCode, be.Message)
		}
		return fmt.Sprintf("Backend error (%d).", be.StatusCode)
	}
	return "Failed to connect to backend."
}

// UpdatedCaption renders "Updated: 15:04:05 (5 seconds ago)".
func UpdatedCaption(last, now time.Time) string {
	if last.IsZero() {
		return "Updated: never"
	}
	return fmt.Sprintf("Updated: %s (%s)", last.Local().Format("15:04:05"), format.Ago(last, now))
}

// ResultsCaption summarises a filtered result set. It is empty when no
// filters are applied.
func ResultsCaption(total int64, filtered bool) string {
	if !filtered {
		return ""
	}
	if total == 1 {
		return "1 result matches the current filters"
	}
	return format.Count(total) + " results match the current filters"
}

// PageCaption renders "Page 2 of 5". An empty result shows page 1 of 1.
func PageCaption(number, totalPages int) string {
	if totalPages < 1 {
		totalPages = 1
	}
	return fmt.Sprintf("Page %d of %d", number+1, totalPages)
}

// EmptyMessage is shown in place of an empty table.
const EmptyMessage = "No jobs found"

// Package querystate owns the user's view of the job list: filters being
// edited, filters in force, the active status tab, the page cursor and the
// server-side ordering. It derives exactly one canonical jobs.Query from
// that state at any moment.
//
// A Manager is not safe for concurrent use; the monitor engine serializes
// access to it.
package querystate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

var (
	// ErrInvalidFilter is returned by ApplyFilters when a pending time bound
	// cannot be parsed or the bounds are inverted.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrUnknownField is returned for a filter field that does not exist.
	ErrUnknownField = jobs.ErrUnknownField
)

// DefaultPageSize is used when Options.PageSize is not positive.
const DefaultPageSize = 10

// Options configures a Manager.
type Options struct {
	PageSize int
	Sort     jobs.Sort
	// Location interprets date-only and zone-less time bounds. Defaults to
	// time.Local.
	Location *time.Location
}

// State is a copy of the query state at one instant.
type State struct {
	Pending    jobs.Filter
	Applied    jobs.Filter
	Tab        jobs.Tab
	Page       int
	PageSize   int
	Sort       jobs.Sort
	TotalPages int
}

// Manager holds the query state and applies intents to it.
type Manager struct {
	state State
	loc   *time.Location
	from  *time.Time
	to    *time.Time
}

// New returns a Manager on the ALL tab, page 0, with no filters.
func New(opts Options) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Sort.Field == "" {
		opts.Sort = jobs.DefaultSort
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Manager{
		state: State{
			Tab:      jobs.TabAll,
			PageSize: opts.PageSize,
			Sort:     opts.Sort,
		},
		loc: opts.Location,
	}
}

// EditPendingFilter updates one pending field. Applied filters are untouched.
func (m *Manager) EditPendingFilter(field jobs.FilterField, value string) error {
	return m.state.Pending.Set(field, value)
}

// ApplyFilters copies the pending filters into the applied filters and
// resets the page cursor. On error nothing changes.
func (m *Manager) ApplyFilters() (jobs.Query, error) {
	from, to, err := m.state.Pending.Bounds(m.loc)
	if err != nil {
		return jobs.Query{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	m.state.Applied = m.state.Pending
	m.from, m.to = from, to
	m.state.Page = 0
	m.state.TotalPages = 0
	return m.Query(), nil
}

// ClearFilters empties both pending and applied filters and resets the page.
func (m *Manager) ClearFilters() jobs.Query {
	m.state.Pending = jobs.Filter{}
	m.state.Applied = jobs.Filter{}
	m.from, m.to = nil, nil
	m.state.Page = 0
	m.state.TotalPages = 0
	return m.Query()
}

// SelectTab switches the status tab and resets the page.
func (m *Manager) SelectTab(tab jobs.Tab) (jobs.Query, error) {
	if !tab.Valid() {
		return jobs.Query{}, fmt.Errorf("select tab: invalid tab %q", tab)
	}
	m.state.Tab = tab
	m.state.Page = 0
	m.state.TotalPages = 0
	return m.Query(), nil
}

// GoToPage moves the cursor to n, clamped to the known page range. Until a
// fetch reports the page count of the current result set the range is
// [0, 0]. Filters and tab are kept.
func (m *Manager) GoToPage(n int) jobs.Query {
	m.state.Page = m.clampPage(n)
	return m.Query()
}

// SetSort changes the server-side ordering and resets the page.
func (m *Manager) SetSort(s jobs.Sort) (jobs.Query, error) {
	if !s.Field.Valid() {
		return jobs.Query{}, fmt.Errorf("set sort: invalid field %q", s.Field)
	}
	m.state.Sort = s
	m.state.Page = 0
	m.state.TotalPages = 0
	return m.Query(), nil
}

// SetTotalPages records the page count reported by the latest fetch and
// clamps the cursor into the new range. It reports whether the cursor moved.
func (m *Manager) SetTotalPages(n int) bool {
	if n < 0 {
		n = 0
	}
	m.state.TotalPages = n
	page := m.clampPage(m.state.Page)
	moved := page != m.state.Page
	m.state.Page = page
	return moved
}

// HasActiveFilters reports whether any applied filter constrains results.
func (m *Manager) HasActiveFilters() bool {
	return !m.state.Applied.IsEmpty()
}

// Query derives the canonical query for the current state.
func (m *Manager) Query() jobs.Query {
	q := jobs.Query{
		Page:          m.state.Page,
		PageSize:      m.state.PageSize,
		Sort:          m.state.Sort,
		JobName:       strings.TrimSpace(m.state.Applied.JobName),
		RunID:         strings.TrimSpace(m.state.Applied.RunID),
		StartTimeFrom: copyTime(m.from),
		StartTimeTo:   copyTime(m.to),
	}
	if st, ok := m.state.Tab.Status(); ok {
		q.Status = st
	}
	return q
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	return m.state
}

func (m *Manager) clampPage(n int) int {
	last := m.state.TotalPages - 1
	if n > last {
		n = last
	}
	if n < 0 {
		n = 0
	}
	return n
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

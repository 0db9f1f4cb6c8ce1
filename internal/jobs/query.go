package jobs

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SortField is a column the backend can order by.
type SortField string

const (
	SortByID        SortField = "id"
	SortByJobName   SortField = "jobName"
	SortByRunID     SortField = "runId"
	SortByStatus    SortField = "status"
	SortByStartTime SortField = "startTime"
	SortByEndTime   SortField = "endTime"
)

// SortFields lists the sortable columns.
var SortFields = []SortField{SortByID, SortByJobName, SortByRunID, SortByStatus, SortByStartTime, SortByEndTime}

// Sort is a server-side ordering.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort orders newest executions first.
var DefaultSort = Sort{Field: SortByID, Desc: true}

// String renders the sort as "field,dir".
func (s Sort) String() string {
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return string(s.Field) + "," + dir
}

// ParseSort parses "field[,asc|desc]". Blank input yields DefaultSort.
func ParseSort(v string) (Sort, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultSort, nil
	}
	field, dir, _ := strings.Cut(v, ",")
	s := Sort{Field: SortField(strings.TrimSpace(field))}
	if !s.Field.Valid() {
		return Sort{}, fmt.Errorf("invalid sort field %q", field)
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		s.Desc = true
	default:
		return Sort{}, fmt.Errorf("invalid sort direction %q", dir)
	}
	return s, nil
}

// Valid reports whether f is one of SortFields.
func (f SortField) Valid() bool {
	for _, v := range SortFields {
		if f == v {
			return true
		}
	}
	return false
}

// Query is the canonical request for one page of job executions.
type Query struct {
	Page          int
	PageSize      int
	Sort          Sort
	Status        Status // empty means every status
	JobName       string
	RunID         string
	StartTimeFrom *time.Time
	StartTimeTo   *time.Time

	// End-time bounds never match a running execution.
	EndTimeFrom *time.Time
	EndTimeTo   *time.Time

	// WithStats asks the backend to return per-status counts inline.
	WithStats bool
}

// StatsQuery drops paging, ordering and the status constraint, keeping the
// filters that describe the population the tab counts are taken over.
func (q Query) StatsQuery() Query {
	return Query{
		JobName:       q.JobName,
		RunID:         q.RunID,
		StartTimeFrom: q.StartTimeFrom,
		StartTimeTo:   q.StartTimeTo,
		EndTimeFrom:   q.EndTimeFrom,
		EndTimeTo:     q.EndTimeTo,
	}
}

// FilterValues encodes the non-paging constraints as URL parameters.
// Empty constraints are omitted.
func (q Query) FilterValues() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if s := strings.TrimSpace(q.JobName); s != "" {
		v.Set("jobName", s)
	}
	if s := strings.TrimSpace(q.RunID); s != "" {
		v.Set("runId", s)
	}
	if q.StartTimeFrom != nil {
		v.Set("startTimeFrom", q.StartTimeFrom.Format(time.RFC3339Nano))
	}
	if q.StartTimeTo != nil {
		v.Set("startTimeTo", q.StartTimeTo.Format(time.RFC3339Nano))
	}
	if q.EndTimeFrom != nil {
		v.Set("endTimeFrom", q.EndTimeFrom.Format(time.RFC3339Nano))
	}
	if q.EndTimeTo != nil {
		v.Set("endTimeTo", q.EndTimeTo.Format(time.RFC3339Nano))
	}
	return v
}

// Values encodes the full query as URL parameters.
func (q Query) Values() url.Values {
	v := q.FilterValues()
	v.Set("page", strconv.Itoa(q.Page))
	if q.PageSize > 0 {
		v.Set("size", strconv.Itoa(q.PageSize))
	}
	if q.Sort.Field != "" {
		v.Set("sort", q.Sort.String())
	}
	if q.WithStats {
		v.Set("withStats", "true")
	}
	return v
}

// Key identifies the result set and page the query selects. Two queries
// with equal keys must produce the same response.
func (q Query) Key() string {
	q.WithStats = false
	return q.Values().Encode()
}

// Matches reports whether j satisfies the query's constraints.
func (q Query) Matches(j Job) bool {
	if q.Status != "" && j.Status != q.Status {
		return false
	}
	if s := strings.TrimSpace(q.JobName); s != "" &&
		!strings.Contains(strings.ToLower(j.JobName), strings.ToLower(s)) {
		return false
	}
	if s := strings.TrimSpace(q.RunID); s != "" &&
		!strings.Contains(strings.ToLower(j.RunID), strings.ToLower(s)) {
		return false
	}
	if q.StartTimeFrom != nil && j.StartTime.Before(*q.StartTimeFrom) {
		return false
	}
	if q.StartTimeTo != nil && j.StartTime.After(*q.StartTimeTo) {
		return false
	}
	if q.EndTimeFrom != nil && (j.EndTime == nil || j.EndTime.Before(*q.EndTimeFrom)) {
		return false
	}
	if q.EndTimeTo != nil && (j.EndTime == nil || j.EndTime.After(*q.EndTimeTo)) {
		return false
	}
	return true
}

// ErrInvalidQuery is returned by ParseQuery for malformed parameters.
var ErrInvalidQuery = errors.New("invalid query")

// MaxPageSize caps the page size a caller may request.
const MaxPageSize = 1000

// ParseQuery decodes URL parameters produced by Values. Missing page size
// falls back to defaultSize.
func ParseQuery(v url.Values, defaultSize int) (Query, error) {
	q := Query{PageSize: defaultSize}

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("%w: page must be a non-negative integer", ErrInvalidQuery)
		}
		q.Page = n
	}
	if s := v.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > MaxPageSize {
			return Query{}, fmt.Errorf("%w: size must be between 1 and %d", ErrInvalidQuery, MaxPageSize)
		}
		q.PageSize = n
	}

	sort, err := ParseSort(v.Get("sort"))
	if err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	q.Sort = sort

	if s := v.Get("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		q.Status = st
	}

	q.JobName = strings.TrimSpace(v.Get("jobName"))
	q.RunID = strings.TrimSpace(v.Get("runId"))

	if q.StartTimeFrom, err = ParseBound(v.Get("startTimeFrom"), false, time.UTC); err != nil {
		return Query{}, fmt.Errorf("%w: startTimeFrom: %v", ErrInvalidQuery, err)
	}
	if q.StartTimeTo, err = ParseBound(v.Get("startTimeTo"), true, time.UTC); err != nil {
		return Query{}, fmt.Errorf("%w: startTimeTo: %v", ErrInvalidQuery, err)
	}
	if q.EndTimeFrom, err = ParseBound(v.Get("endTimeFrom"), false, time.UTC); err != nil {
		return Query{}, fmt.Errorf("%w: endTimeFrom: %v", ErrInvalidQuery, err)
	}
	if q.EndTimeTo, err = ParseBound(v.Get("endTimeTo"), true, time.UTC); err != nil {
		return Query{}, fmt.Errorf("%w: endTimeTo: %v", ErrInvalidQuery, err)
	}

	q.WithStats, _ = strconv.ParseBool(v.Get("withStats"))
	return q, nil
}

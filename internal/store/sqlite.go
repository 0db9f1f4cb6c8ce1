package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
	_ "modernc.org/sqlite"
)

// DefaultPageSize is used when a query does not name a page size.
const DefaultPageSize = 10

// SQLiteStore implements JobStore backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Fixed width so that lexical order in SQL matches chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// StartJob records a new execution in the RUNNING state, started at at.
func (s *SQLiteStore) StartJob(ctx context.Context, req jobs.StartRequest, at time.Time) (*jobs.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	now := formatTime(at)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_executions (job_name, run_id, status, start_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_name, run_id) DO NOTHING`,
		strings.TrimSpace(req.JobName),
		strings.TrimSpace(req.RunID),
		string(jobs.StatusRunning),
		now,
		now,
		now,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrConflict, req.JobName, req.RunID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetJob(ctx, id)
}

// UpdateJob applies req to the execution it identifies. A terminal status
// without an explicit end time stamps the end time with now.
func (s *SQLiteStore) UpdateJob(ctx context.Context, req jobs.UpdateRequest, now time.Time) (*jobs.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Status == jobs.StatusUnknown {
		return nil, fmt.Errorf("%w: status must be RUNNING, SUCCESS or FAILED", ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRowContext(ctx,
		"SELECT "+selectJobCols+" FROM job_executions WHERE job_name = ? AND run_id = ?",
		strings.TrimSpace(req.JobName), strings.TrimSpace(req.RunID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, req.JobName, req.RunID)
	}
	if err != nil {
		return nil, err
	}

	if req.Status != "" {
		job.Status = req.Status
	}
	switch {
	case req.EndTime != nil:
		t := req.EndTime.UTC()
		job.EndTime = &t
	case req.Status.IsTerminal():
		t := now.UTC()
		job.EndTime = &t
	}
	if req.ErrorMessage != "" {
		job.ErrorMessage = req.ErrorMessage
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE job_executions
		SET status = ?, end_time = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(job.Status),
		formatTimePtr(job.EndTime),
		nullString(job.ErrorMessage),
		formatTime(now),
		job.ID,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func scanJob(row interface{ Scan(...any) error }) (*jobs.Job, error) {
	var j jobs.Job
	var status, startTime string
	var endTime, errorMessage sql.NullString

	err := row.Scan(
		&j.ID,
		&j.JobName,
		&j.RunID,
		&status,
		&startTime,
		&endTime,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	j.Status = jobs.Status(status)
	j.StartTime, err = parseTime(startTime)
	if err != nil {
		return nil, fmt.Errorf("parse start_time: %w", err)
	}
	j.EndTime, err = parseTimePtr(endTime)
	if err != nil {
		return nil, fmt.Errorf("parse end_time: %w", err)
	}
	if errorMessage.Valid {
		j.ErrorMessage = errorMessage.String
	}
	return &j, nil
}

const selectJobCols = `id, job_name, run_id, status, start_time, end_time, error_message`

// GetJob retrieves a single execution by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectJobCols+" FROM job_executions WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return job, err
}

var sortColumns = map[jobs.SortField]string{
	jobs.SortByID:        "id",
	jobs.SortByJobName:   "job_name",
	jobs.SortByRunID:     "run_id",
	jobs.SortByStatus:    "status",
	jobs.SortByStartTime: "start_time",
	jobs.SortByEndTime:   "end_time",
}

func orderBy(sort jobs.Sort) string {
	col, ok := sortColumns[sort.Field]
	if !ok {
		sort = jobs.DefaultSort
		col = sortColumns[sort.Field]
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	if col == "id" {
		return " ORDER BY id " + dir
	}
	return " ORDER BY " + col + " " + dir + ", id " + dir
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// where renders q's constraints. Name and run id match as case-insensitive
// substrings; time bounds are inclusive and a NULL end_time fails any end
// bound.
func where(q jobs.Query) (string, []any) {
	var conds []string
	var args []any

	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(q.Status))
	}
	if s := strings.TrimSpace(q.JobName); s != "" {
		conds = append(conds, `job_name LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(s))
	}
	if s := strings.TrimSpace(q.RunID); s != "" {
		conds = append(conds, `run_id LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(s))
	}
	if q.StartTimeFrom != nil {
		conds = append(conds, "start_time >= ?")
		args = append(args, formatTime(*q.StartTimeFrom))
	}
	if q.StartTimeTo != nil {
		conds = append(conds, "start_time <= ?")
		args = append(args, formatTime(*q.StartTimeTo))
	}
	if q.EndTimeFrom != nil {
		conds = append(conds, "end_time >= ?")
		args = append(args, formatTime(*q.EndTimeFrom))
	}
	if q.EndTimeTo != nil {
		conds = append(conds, "end_time <= ?")
		args = append(args, formatTime(*q.EndTimeTo))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...any) ([]jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []jobs.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// ListJobs returns one page of executions matching q.
func (s *SQLiteStore) ListJobs(ctx context.Context, q jobs.Query) (jobs.Page, error) {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	cond, args := where(q)

	var total int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM job_executions"+cond, args...).Scan(&total); err != nil {
		return jobs.Page{}, err
	}

	query := "SELECT " + selectJobCols + " FROM job_executions" + cond + orderBy(q.Sort) + " LIMIT ? OFFSET ?"
	rows, err := s.queryJobs(ctx, query, append(args, size, q.Page*size)...)
	if err != nil {
		return jobs.Page{}, err
	}
	return jobs.NewPage(rows, total, q.Page, size), nil
}

// ListAll returns every execution matching q, ignoring paging.
func (s *SQLiteStore) ListAll(ctx context.Context, q jobs.Query) ([]jobs.Job, error) {
	cond, args := where(q)
	return s.queryJobs(ctx, "SELECT "+selectJobCols+" FROM job_executions"+cond+orderBy(q.Sort), args...)
}

// Stats counts executions per status over the population selected by q's
// non-status filters.
func (s *SQLiteStore) Stats(ctx context.Context, q jobs.Query) (jobs.Stats, error) {
	cond, args := where(q.StatsQuery())

	var st jobs.Stats
	var running, success, failed sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) AS total,
			SUM(CASE WHEN status = 'RUNNING' THEN 1 ELSE 0 END) AS running,
			SUM(CASE WHEN status = 'SUCCESS' THEN 1 ELSE 0 END) AS success,
			SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END) AS failed
		FROM job_executions`+cond, args...).Scan(
		&st.All,
		&running,
		&success,
		&failed,
	)
	if err != nil {
		return jobs.Stats{}, err
	}
	st.Running = running.Int64
	st.Success = success.Int64
	st.Failed = failed.Int64
	st.Unknown = st.All - st.Running - st.Success - st.Failed
	return st, nil
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func start(t *testing.T, s *SQLiteStore, name, run string, at time.Time) *jobs.Job {
	t.Helper()
	j, err := s.StartJob(context.Background(), jobs.StartRequest{JobName: name, RunID: run}, at)
	if err != nil {
		t.Fatalf("StartJob(%s/%s) error = %v", name, run, err)
	}
	return j
}

func finish(t *testing.T, s *SQLiteStore, name, run string, st jobs.Status) {
	t.Helper()
	_, err := s.UpdateJob(context.Background(), jobs.UpdateRequest{JobName: name, RunID: run, Status: st}, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("UpdateJob(%s/%s) error = %v", name, run, err)
	}
}

func TestStartJob(t *testing.T) {
	s := newTestStore(t)
	j := start(t, s, "etl", "r1", t0)
	if j.ID == 0 || j.Status != jobs.StatusRunning || !j.StartTime.Equal(t0) || j.EndTime != nil {
		t.Fatalf("StartJob() = %+v", j)
	}

	got, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.JobName != "etl" || got.RunID != "r1" {
		t.Fatalf("GetJob() = %+v", got)
	}
}

func TestStartJobDuplicate(t *testing.T) {
	s := newTestStore(t)
	start(t, s, "etl", "r1", t0)
	_, err := s.StartJob(context.Background(), jobs.StartRequest{JobName: "etl", RunID: "r1"}, t0)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate StartJob() error = %v, want ErrConflict", err)
	}
}

func TestStartJobInvalid(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StartJob(context.Background(), jobs.StartRequest{JobName: " ", RunID: "r1"}, t0)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("StartJob() error = %v, want ErrInvalidRequest", err)
	}
}

func TestUpdateJobStampsEndTime(t *testing.T) {
	s := newTestStore(t)
	start(t, s, "etl", "r1", t0)
	now := t0.Add(90 * time.Second)

	j, err := s.UpdateJob(context.Background(), jobs.UpdateRequest{
		JobName:      "etl",
		RunID:        "r1",
		Status:       jobs.StatusFailed,
		ErrorMessage: "boom",
	}, now)
	if err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}
	if j.Status != jobs.StatusFailed || j.ErrorMessage != "boom" {
		t.Fatalf("UpdateJob() = %+v", j)
	}
	if j.EndTime == nil || !j.EndTime.Equal(now) {
		t.Fatalf("EndTime = %v, want %v", j.EndTime, now)
	}
}

func TestUpdateJobExplicitEndTime(t *testing.T) {
	s := newTestStore(t)
	start(t, s, "etl", "r1", t0)
	end := t0.Add(5 * time.Minute)

	j, err := s.UpdateJob(context.Background(), jobs.UpdateRequest{
		JobName: "etl",
		RunID:   "r1",
		Status:  jobs.StatusSuccess,
		EndTime: &end,
	}, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}
	if j.EndTime == nil || !j.EndTime.Equal(end) {
		t.Fatalf("EndTime = %v, want %v", j.EndTime, end)
	}
}

func TestUpdateJobRunningKeepsEndTimeEmpty(t *testing.T) {
	s := newTestStore(t)
	start(t, s, "etl", "r1", t0)
	j, err := s.UpdateJob(context.Background(), jobs.UpdateRequest{JobName: "etl", RunID: "r1", ErrorMessage: "slow"}, t0)
	if err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}
	if j.Status != jobs.StatusRunning || j.EndTime != nil || j.ErrorMessage != "slow" {
		t.Fatalf("UpdateJob() = %+v", j)
	}
}

func TestUpdateJobErrors(t *testing.T) {
	s := newTestStore(t)
	start(t, s, "etl", "r1", t0)
	ctx := context.Background()

	if _, err := s.UpdateJob(ctx, jobs.UpdateRequest{JobName: "etl", RunID: "nope"}, t0); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown run error = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateJob(ctx, jobs.UpdateRequest{JobName: "etl"}, t0); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing run id error = %v, want ErrInvalidRequest", err)
	}
	if _, err := s.UpdateJob(ctx, jobs.UpdateRequest{JobName: "etl", RunID: "r1", Status: jobs.StatusUnknown}, t0); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("unknown status error = %v, want ErrInvalidRequest", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetJob(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetJob() error = %v, want ErrNotFound", err)
	}
}

func seed(t *testing.T, s *SQLiteStore) {
	t.Helper()
	start(t, s, "nightly-etl", "r1", t0)
	start(t, s, "nightly-etl", "r2", t0.Add(time.Hour))
	start(t, s, "report", "r3", t0.Add(2*time.Hour))
	start(t, s, "Nightly-Backup", "r4", t0.Add(24*time.Hour))
	start(t, s, "cleanup_100%", "r5", t0.Add(25*time.Hour))
	finish(t, s, "nightly-etl", "r1", jobs.StatusSuccess)
	finish(t, s, "nightly-etl", "r2", jobs.StatusFailed)
	finish(t, s, "report", "r3", jobs.StatusSuccess)
}

func TestListJobsPaging(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	page, err := s.ListJobs(context.Background(), jobs.Query{Page: 1, PageSize: 2, Sort: jobs.DefaultSort})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if page.TotalElements != 5 || page.TotalPages != 3 || page.Number != 1 || page.Size != 2 {
		t.Fatalf("page meta = %+v", page)
	}
	if len(page.Rows) != 2 || page.Rows[0].RunID != "r3" || page.Rows[1].RunID != "r2" {
		t.Fatalf("rows = %+v", page.Rows)
	}
}

func TestListJobsPastEnd(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	page, err := s.ListJobs(context.Background(), jobs.Query{Page: 10, PageSize: 2})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if page.Rows == nil || len(page.Rows) != 0 || page.TotalElements != 5 {
		t.Fatalf("page = %+v", page)
	}
}

func TestListJobsFilters(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	from := t0.Add(30 * time.Minute)
	to := t0.Add(24 * time.Hour)

	tests := []struct {
		name string
		q    jobs.Query
		want []string
	}{
		{"status", jobs.Query{Status: jobs.StatusSuccess}, []string{"r3", "r1"}},
		{"name case-insensitive", jobs.Query{JobName: "NIGHTLY"}, []string{"r4", "r2", "r1"}},
		{"run id substring", jobs.Query{RunID: "3"}, []string{"r3"}},
		{"like wildcard is literal", jobs.Query{JobName: "100%"}, []string{"r5"}},
		{"underscore is literal", jobs.Query{JobName: "y_e"}, nil},
		{"inclusive bounds", jobs.Query{StartTimeFrom: &from, StartTimeTo: &to}, []string{"r4", "r3", "r2"}},
		{"combined", jobs.Query{JobName: "etl", Status: jobs.StatusFailed}, []string{"r2"}},
		{"end bounds skip running", jobs.Query{EndTimeFrom: &t0}, []string{"r3", "r2", "r1"}},
		{"end bound before any finish", jobs.Query{EndTimeTo: &from}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.q.PageSize = 10
			page, err := s.ListJobs(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(page.Rows) != len(tt.want) || page.TotalElements != int64(len(tt.want)) {
				t.Fatalf("rows = %+v, want run ids %v", page.Rows, tt.want)
			}
			for i, id := range tt.want {
				if page.Rows[i].RunID != id {
					t.Errorf("row %d = %s, want %s", i, page.Rows[i].RunID, id)
				}
				if !tt.q.Matches(page.Rows[i]) {
					t.Errorf("row %d does not satisfy Query.Matches", i)
				}
			}
		})
	}
}

func TestListJobsSort(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	page, err := s.ListJobs(context.Background(), jobs.Query{
		PageSize: 10,
		Sort:     jobs.Sort{Field: jobs.SortByJobName},
	})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	want := []string{"r4", "r5", "r1", "r2", "r3"}
	for i, id := range want {
		if page.Rows[i].RunID != id {
			t.Fatalf("row %d = %s (%s), want %s", i, page.Rows[i].RunID, page.Rows[i].JobName, id)
		}
	}
}

func TestListAllIgnoresPaging(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	all, err := s.ListAll(context.Background(), jobs.Query{Page: 3, PageSize: 1, JobName: "etl"})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListAll() returned %d rows, want 2", len(all))
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	st, err := s.Stats(context.Background(), jobs.Query{})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := jobs.Stats{All: 5, Running: 2, Success: 2, Failed: 1}
	if st != want {
		t.Fatalf("Stats() = %+v, want %+v", st, want)
	}

	// The status constraint does not narrow the counts.
	st, err = s.Stats(context.Background(), jobs.Query{JobName: "etl", Status: jobs.StatusFailed})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want = jobs.Stats{All: 2, Success: 1, Failed: 1}
	if st != want {
		t.Fatalf("Stats(etl) = %+v, want %+v", st, want)
	}
}

func TestStatsEmpty(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Stats(context.Background(), jobs.Query{})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st != (jobs.Stats{}) {
		t.Fatalf("Stats() = %+v, want zero", st)
	}
}

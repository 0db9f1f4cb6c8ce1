package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

// fakeSource serves a fixed population and computes remote stats the way
// the backend does.
type fakeSource struct {
	rows      []jobs.Job
	err       error
	statCalls int
	lastQuery jobs.Query
}

func (f *fakeSource) GetStats(_ context.Context, q jobs.Query) (jobs.Stats, error) {
	f.statCalls++
	f.lastQuery = q
	if f.err != nil {
		return jobs.Stats{}, f.err
	}
	var s jobs.Stats
	for _, j := range f.rows {
		if q.Matches(j) {
			s.Add(j.Status)
		}
	}
	return s, nil
}

func (f *fakeSource) ListAll(_ context.Context, q jobs.Query) ([]jobs.Job, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	var out []jobs.Job
	for _, j := range f.rows {
		if q.Matches(j) {
			out = append(out, j)
		}
	}
	return out, nil
}

func sampleRows() []jobs.Job {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []jobs.Job{
		{ID: 3, JobName: "etl-daily", Status: jobs.StatusFailed, StartTime: t0.Add(2 * time.Minute)},
		{ID: 2, JobName: "etl-daily", Status: jobs.StatusSuccess, StartTime: t0.Add(time.Minute)},
		{ID: 1, JobName: "report", Status: jobs.StatusRunning, StartTime: t0},
	}
}

// forEachStrategy runs fn against every strategy over the same population.
func forEachStrategy(t *testing.T, rows []jobs.Job, fn func(t *testing.T, agg Aggregator, src *fakeSource)) {
	t.Helper()
	for _, mode := range []Mode{ModeLocal, ModeRemote, ModeInline} {
		t.Run(string(mode), func(t *testing.T) {
			src := &fakeSource{rows: rows}
			agg, err := New(mode, src)
			if err != nil {
				t.Fatalf("New(%s): %v", mode, err)
			}
			if agg.Mode() != mode {
				t.Fatalf("Mode = %s, want %s", agg.Mode(), mode)
			}
			fn(t, agg, src)
		})
	}
}

func TestExampleScenarioCounts(t *testing.T) {
	forEachStrategy(t, sampleRows(), func(t *testing.T, agg Aggregator, _ *fakeSource) {
		got, err := agg.Aggregate(context.Background(), jobs.Query{Page: 1, PageSize: 1}, nil)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		want := jobs.Stats{All: 3, Running: 1, Success: 1, Failed: 1}
		if got != want {
			t.Fatalf("stats = %+v, want %+v", got, want)
		}
	})
}

func TestAllEqualsBucketSum(t *testing.T) {
	rows := append(sampleRows(), jobs.Job{ID: 4, JobName: "odd", Status: jobs.StatusUnknown})
	forEachStrategy(t, rows, func(t *testing.T, agg Aggregator, _ *fakeSource) {
		got, err := agg.Aggregate(context.Background(), jobs.Query{}, nil)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if got.All != got.Running+got.Success+got.Failed+got.Unknown {
			t.Fatalf("ALL %d != bucket sum in %+v", got.All, got)
		}
		if got.All != 4 {
			t.Fatalf("ALL = %d, want 4", got.All)
		}
	})
}

func TestIgnoresPageAndStatusButKeepsFilters(t *testing.T) {
	forEachStrategy(t, sampleRows(), func(t *testing.T, agg Aggregator, src *fakeSource) {
		q := jobs.Query{Page: 7, PageSize: 1, Status: jobs.StatusFailed, JobName: "etl"}
		got, err := agg.Aggregate(context.Background(), q, nil)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		want := jobs.Stats{All: 2, Success: 1, Failed: 1}
		if got != want {
			t.Fatalf("stats = %+v, want %+v", got, want)
		}
		if src.lastQuery.Page != 0 || src.lastQuery.Status != "" {
			t.Fatalf("source saw paging or status: %+v", src.lastQuery)
		}
	})
}

func TestErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	forEachStrategy(t, sampleRows(), func(t *testing.T, agg Aggregator, src *fakeSource) {
		src.err = boom
		if _, err := agg.Aggregate(context.Background(), jobs.Query{}, nil); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped boom, got %v", err)
		}
	})
}

func TestRemoteAdoptsInlineStats(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rows: sampleRows()}
	agg := NewRemote(src, true)
	if !agg.Inline() {
		t.Fatalf("expected inline strategy")
	}
	inline := jobs.Stats{All: 99, Running: 99}
	got, err := agg.Aggregate(context.Background(), jobs.Query{}, &inline)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got != inline || src.statCalls != 0 {
		t.Fatalf("inline stats not adopted verbatim: %+v (calls %d)", got, src.statCalls)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	if m, err := ParseMode(""); err != nil || m != ModeRemote {
		t.Fatalf("ParseMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseMode("LOCAL"); err != nil || m != ModeLocal {
		t.Fatalf("ParseMode(LOCAL) = %q, %v", m, err)
	}
	if _, err := ParseMode("cached"); err == nil {
		t.Fatalf("expected error")
	}
}

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

func TestBuildListQuery(t *testing.T) {
	q, err := buildListQuery(listFlags{
		tab:  "failed",
		job:  " spark ",
		from: "2024-03-01",
		sort: "startTime,asc",
		page: 3,
		size: 25,
	})
	if err != nil {
		t.Fatalf("buildListQuery() error = %v", err)
	}
	if q.Status != jobs.StatusFailed || q.JobName != "spark" || q.Page != 2 || q.PageSize != 25 {
		t.Fatalf("query = %+v", q)
	}
	if q.Sort != (jobs.Sort{Field: jobs.SortByStartTime}) {
		t.Fatalf("sort = %+v", q.Sort)
	}
	if q.StartTimeFrom == nil || q.StartTimeTo != nil {
		t.Fatalf("bounds = %v, %v", q.StartTimeFrom, q.StartTimeTo)
	}
}

func TestBuildListQueryErrors(t *testing.T) {
	tests := []listFlags{
		{tab: "DONE", page: 1, size: 10},
		{tab: "ALL", page: 0, size: 10},
		{tab: "ALL", page: 1, size: 10, sort: "nope"},
		{tab: "ALL", page: 1, size: 10, to: "not-a-date"},
	}
	for _, lf := range tests {
		if _, err := buildListQuery(lf); err == nil {
			t.Errorf("buildListQuery(%+v) error = nil", lf)
		}
	}
}

func TestPrintList(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	out := listOutput{
		Page: jobs.NewPage([]jobs.Job{
			{ID: 1, JobName: "etl", RunID: "r1", Status: jobs.StatusSuccess, StartTime: start, EndTime: &end},
		}, 11, 0, 10),
		Stats: jobs.Stats{All: 11, Success: 11},
	}

	var buf bytes.Buffer
	if err := printList(&buf, out, jobs.Query{JobName: "etl"}, start.Add(time.Hour)); err != nil {
		t.Fatalf("printList() error = %v", err)
	}
	got := buf.String()
	for _, want := range []string{"All (11)", "Successful (11)", "11 results match", "etl", "1m 30s", "Page 1 of 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintListEmpty(t *testing.T) {
	var buf bytes.Buffer
	out := listOutput{Page: jobs.NewPage(nil, 0, 0, 10)}
	if err := printList(&buf, out, jobs.Query{}, time.Now()); err != nil {
		t.Fatalf("printList() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No jobs found") {
		t.Fatalf("output = %q", buf.String())
	}
}

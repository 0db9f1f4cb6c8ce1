package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Write([]byte("abc"))
	if got := rb.String(); got != "abc" {
		t.Fatalf("String() = %q, want abc", got)
	}
	rb.Write([]byte("defghij"))
	if got := rb.String(); got != "cdefghij" {
		t.Fatalf("String() = %q, want cdefghij", got)
	}
	rb.Write([]byte("0123456789"))
	if got := rb.String(); got != "23456789" {
		t.Fatalf("String() = %q, want 23456789", got)
	}
}

func TestBuildEnv(t *testing.T) {
	t.Setenv("RUNWATCH_TEST_BASE", "process")
	env := BuildEnv(map[string]string{"A": "base"}, Job{
		Name:  "etl",
		RunID: "r1",
		Env:   map[string]string{"A": "job"},
	})

	got := map[string]string{}
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		got[k] = v
	}
	if got["A"] != "job" || got[EnvJobName] != "etl" || got[EnvRunID] != "r1" || got["RUNWATCH_TEST_BASE"] != "process" {
		t.Fatalf("env = %v", got)
	}
}

func TestRunExitCode(t *testing.T) {
	var stdout bytes.Buffer
	res := NewRunner().Run(context.Background(),
		[]string{"sh", "-c", `echo "$RUNWATCH_JOB_NAME"; echo oops >&2; exit 3`},
		Job{Name: "etl", RunID: "r1"},
		RunOptions{Stdout: &stdout},
	)
	if res.ExitCode != 3 || !res.Failed() {
		t.Fatalf("result = %+v", res)
	}
	if strings.TrimSpace(stdout.String()) != "etl" {
		t.Fatalf("stdout = %q", stdout.String())
	}
	if msg := res.ErrorMessage(); msg != "exit status 3: oops" {
		t.Fatalf("ErrorMessage() = %q", msg)
	}
}

func TestRunTimeout(t *testing.T) {
	res := NewRunner().Run(context.Background(), []string{"sleep", "5"}, Job{Name: "slow"},
		RunOptions{Timeout: 50 * time.Millisecond})
	if !res.Failed() || !strings.HasPrefix(res.Error, "timeout") {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunMissingCommand(t *testing.T) {
	res := NewRunner().Run(context.Background(), []string{"runwatch-no-such-binary"}, Job{Name: "x"}, RunOptions{})
	if res.ExitCode != -1 || res.Error == "" {
		t.Fatalf("result = %+v", res)
	}
}

type fakeReporter struct {
	mu       sync.Mutex
	started  []jobs.StartRequest
	updated  []jobs.UpdateRequest
	startErr error
}

func (f *fakeReporter) StartJob(_ context.Context, req jobs.StartRequest) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, req)
	if f.startErr != nil {
		return jobs.Job{}, f.startErr
	}
	return jobs.Job{ID: 1, JobName: req.JobName, RunID: req.RunID, Status: jobs.StatusRunning}, nil
}

func (f *fakeReporter) UpdateJob(_ context.Context, req jobs.UpdateRequest) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, req)
	return jobs.Job{ID: 1, JobName: req.JobName, RunID: req.RunID, Status: req.Status}, nil
}

func TestWrapperReportsSuccess(t *testing.T) {
	rep := &fakeReporter{}
	w := NewWrapper(NewRunner(), rep, zaptest.NewLogger(t))

	res := w.Run(context.Background(), Job{Name: "etl", RunID: "r1"}, []string{"true"}, RunOptions{})
	if res.Failed() {
		t.Fatalf("result = %+v", res)
	}
	if len(rep.started) != 1 || rep.started[0].RunID != "r1" {
		t.Fatalf("started = %+v", rep.started)
	}
	if len(rep.updated) != 1 {
		t.Fatalf("updated = %+v", rep.updated)
	}
	u := rep.updated[0]
	if u.Status != jobs.StatusSuccess || u.EndTime == nil || u.ErrorMessage != "" {
		t.Fatalf("update = %+v", u)
	}
}

func TestWrapperReportsFailure(t *testing.T) {
	rep := &fakeReporter{}
	w := NewWrapper(NewRunner(), rep, zaptest.NewLogger(t))

	res := w.Run(context.Background(), Job{Name: "etl"}, []string{"sh", "-c", "echo broken >&2; exit 1"}, RunOptions{})
	if res.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", res.ExitCode)
	}
	if rep.started[0].RunID == "" {
		t.Fatal("run id was not generated")
	}
	u := rep.updated[0]
	if u.Status != jobs.StatusFailed || u.RunID != rep.started[0].RunID {
		t.Fatalf("update = %+v", u)
	}
	if !strings.Contains(u.ErrorMessage, "broken") {
		t.Fatalf("ErrorMessage = %q", u.ErrorMessage)
	}
}

func TestWrapperRunsWhenStartFails(t *testing.T) {
	rep := &fakeReporter{startErr: errors.New("backend down")}
	w := NewWrapper(NewRunner(), rep, zaptest.NewLogger(t))

	res := w.Run(context.Background(), Job{Name: "etl", RunID: "r1"}, []string{"sh", "-c", "exit 4"}, RunOptions{})
	if res.ExitCode != 4 {
		t.Fatalf("ExitCode = %d, want 4", res.ExitCode)
	}
	if len(rep.updated) != 0 {
		t.Fatalf("updated = %+v, want none after failed start", rep.updated)
	}
}

package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestPollerFiresImmediatelyThenOnSchedule(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	p := NewPoller(Every(20*time.Millisecond), func() { fired.Add(1) }, zaptest.NewLogger(t))
	p.Start()
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return fired.Load() >= 1 })
	waitFor(t, time.Second, func() bool { return fired.Load() >= 3 })
	if _, ok := p.NextRun(); !ok {
		t.Fatalf("expected a pending next run while running")
	}
}

func TestPollerStopPreventsFurtherFires(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	p := NewPoller(Every(10*time.Millisecond), func() { fired.Add(1) }, nil)
	p.Start()
	waitFor(t, time.Second, func() bool { return fired.Load() >= 2 })
	p.Stop()

	after := fired.Load()
	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != after {
		t.Fatalf("fired %d times after Stop", got-after)
	}
	if p.Running() {
		t.Fatalf("poller still running")
	}
	if _, ok := p.NextRun(); ok {
		t.Fatalf("stopped poller reports a next run")
	}
}

func TestPollerRestart(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	p := NewPoller(Every(time.Hour), func() { fired.Add(1) }, nil)

	p.Start()
	p.Start()
	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })
	p.Stop()
	p.Stop()

	p.Start()
	waitFor(t, time.Second, func() bool { return fired.Load() == 2 })
	p.Stop()
}

func TestResolve(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	s, err := Resolve(30*time.Second, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := s.Next(now); !got.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("Next = %v", got)
	}

	s, err = Resolve(30*time.Second, "*/5 * * * *")
	if err != nil {
		t.Fatalf("Resolve cron: %v", err)
	}
	if got := s.Next(now); !got.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("cron Next = %v", got)
	}

	if _, err := Resolve(0, ""); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := Resolve(time.Second, "not cron"); err == nil {
		t.Fatalf("expected error for bad expression")
	}
}

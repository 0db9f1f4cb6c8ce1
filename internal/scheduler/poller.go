// Package scheduler drives periodic refreshes from a cron.Schedule.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Poller calls fire once when started and then at every activation of its
// schedule until stopped. A single goroutine owns the timer, so fire is
// never called concurrently with itself.
type Poller struct {
	schedule cron.Schedule
	fire     func()
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	nextRun time.Time
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPoller creates a stopped Poller.
func NewPoller(schedule cron.Schedule, fire func(), logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{schedule: schedule, fire: fire, logger: logger}
}

// Start launches the poll loop. The first fire happens immediately.
// Starting a running Poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.done = make(chan struct{})

	p.wg.Add(1)
	go p.run(p.done)
}

// Stop cancels the pending timer and waits for the loop to exit, including a
// fire already in progress. No fire happens after Stop returns. A stopped
// Poller may be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.nextRun = time.Time{}
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns when the next scheduled fire is due.
func (p *Poller) NextRun() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextRun, !p.nextRun.IsZero()
}

func (p *Poller) run(done <-chan struct{}) {
	defer p.wg.Done()

	p.fire()

	timer := time.NewTimer(p.advance(time.Now()))
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-timer.C:
			// Stop may have raced the timer; done wins.
			select {
			case <-done:
				return
			default:
			}
			p.logger.Debug("poll tick", zap.Time("at", now))
			p.fire()
			timer.Reset(p.advance(time.Now()))
		}
	}
}

// advance records the next activation after now and returns the wait.
func (p *Poller) advance(now time.Time) time.Duration {
	next := NextTime(p.schedule, now)
	p.mu.Lock()
	if p.running {
		p.nextRun = next
	}
	p.mu.Unlock()

	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

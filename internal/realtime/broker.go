// Package realtime is an in-memory fan-out of change notifications. The
// monitor engine uses it to wake presentation layers; the backend uses it to
// stream job changes to SSE clients.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeJobChanged   = "job.changed"
	TypeStateChanged = "state.changed"
)

// Event is one change notification.
type Event struct {
	ID      int64     `json:"id"`
	Type    string    `json:"type"`
	Reason  string    `json:"reason,omitempty"`
	JobID   int64     `json:"jobId,omitempty"`
	JobName string    `json:"jobName,omitempty"`
	RunID   string    `json:"runId,omitempty"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

// Broker fans each published event out to every subscriber.
type Broker struct {
	mu     sync.RWMutex
	nextID atomic.Int64
	nextCh int64
	buffer int
	subs   map[int64]chan Event
	closed bool
}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{
		buffer: DefaultBuffer,
		subs:   make(map[int64]chan Event),
	}
}

// Publish broadcasts evt. Slow subscribers drop events instead of blocking
// producers, so consumers must treat an event as "something changed" and
// re-read state rather than rely on receiving every one.
func (b *Broker) Publish(evt Event) {
	evt.ID = b.nextID.Add(1)
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns its channel and a cancel func.
// The channel is closed by cancel or by Close.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	id := atomic.AddInt64(&b.nextCh, 1)
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel and later publishes are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

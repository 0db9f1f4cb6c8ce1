// Package monitor is the query/poll/state-synchronization engine behind the
// job dashboard. It owns the query state, turns every state-changing intent
// and every poll tick into a fetch tagged with the query it was issued for,
// and applies a fetch result only while that query is still current.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/querystate"
	"github.com/patrickspencer/runwatch/internal/realtime"
	"github.com/patrickspencer/runwatch/internal/scheduler"
	"github.com/patrickspencer/runwatch/internal/stats"
)

// DefaultRefreshInterval is the poll period when no schedule is given.
const DefaultRefreshInterval = 60 * time.Second

// Backend fetches pages of job executions.
type Backend interface {
	ListJobs(ctx context.Context, q jobs.Query) (jobs.PageResult, error)
}

// Options configures an Engine.
type Options struct {
	// Schedule drives background refreshes. Defaults to every
	// DefaultRefreshInterval.
	Schedule cron.Schedule
	PageSize int
	Sort     jobs.Sort
	// Location interprets date-only filter bounds. Defaults to time.Local.
	Location *time.Location
	Logger   *zap.Logger
	// Now is the clock used for LastUpdated. Defaults to time.Now.
	Now func() time.Time
}

// Reasons attached to fetches and change events.
const (
	ReasonPoll    = "poll"
	ReasonRefresh = "refresh"
	ReasonFilter  = "filter"
	ReasonClear   = "clear"
	ReasonTab     = "tab"
	ReasonPage    = "page"
	ReasonSort    = "sort"
	ReasonEdit    = "edit"
	ReasonFetch   = "fetch"
	ReasonApplied = "applied"
	ReasonError   = "error"
	ReasonSession = "session"
)

// request is one fetch, tagged with everything needed to decide later
// whether its result may still be applied.
type request struct {
	seq     uint64
	session uint64
	key     string
	query   jobs.Query
	reason  string
	cancel  context.CancelFunc
}

// Engine is safe for concurrent use. Intents mutate state synchronously;
// fetches run in the background.
type Engine struct {
	backend Backend
	agg     stats.Aggregator
	poller  *scheduler.Poller
	events  *realtime.Broker
	logger  *zap.Logger
	now     func() time.Time

	// lifecycle serializes Activate and Deactivate so the poller's state
	// always matches the session's.
	lifecycle sync.Mutex

	mu          sync.Mutex
	qs          *querystate.Manager
	page        jobs.Page
	stats       jobs.Stats
	hasData     bool
	lastUpdated time.Time
	lastErr     error

	active      bool
	session     uint64
	sessionCtx  context.Context
	endSession  context.CancelFunc
	seq         uint64
	appliedSeq  uint64
	inflight    map[uint64]*request
	loadingReqs int

	wg sync.WaitGroup
}

// New creates an inactive Engine.
func New(backend Backend, agg stats.Aggregator, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Schedule == nil {
		opts.Schedule = scheduler.Every(DefaultRefreshInterval)
	}

	e := &Engine{
		backend: backend,
		agg:     agg,
		events:  realtime.NewBroker(),
		logger:  opts.Logger,
		now:     opts.Now,
		qs: querystate.New(querystate.Options{
			PageSize: opts.PageSize,
			Sort:     opts.Sort,
			Location: opts.Location,
		}),
		page:     jobs.NewPage(nil, 0, 0, 0),
		inflight: make(map[uint64]*request),
	}
	e.poller = scheduler.NewPoller(opts.Schedule, e.tick, opts.Logger)
	return e
}

// Activate starts a poll session: one fetch immediately, then one per
// schedule activation. Activating an active Engine is a no-op.
func (e *Engine) Activate(ctx context.Context) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return
	}
	e.active = true
	e.session++
	e.sessionCtx, e.endSession = context.WithCancel(ctx)
	session := e.session
	e.mu.Unlock()

	e.logger.Info("poll session started", zap.Uint64("session", session))
	e.publish(ReasonSession)
	e.poller.Start()
}

// Deactivate ends the poll session. The timer is stopped before Deactivate
// returns and results of fetches still in flight are discarded.
func (e *Engine) Deactivate() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.session++
	e.endSession()
	for seq, req := range e.inflight {
		req.cancel()
		delete(e.inflight, seq)
	}
	e.loadingReqs = 0
	e.mu.Unlock()

	e.poller.Stop()
	e.logger.Info("poll session ended")
	e.publish(ReasonSession)
}

// Close ends the session, waits for fetches and closes subscriptions.
func (e *Engine) Close() {
	e.Deactivate()
	e.Wait()
	e.events.Close()
}

// Wait blocks until every fetch started so far has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Subscribe returns a feed that receives an event after every state change,
// and a func that ends the subscription.
func (e *Engine) Subscribe() (<-chan realtime.Event, func()) {
	return e.events.Subscribe()
}

// EditPendingFilter updates one pending filter field. No fetch is issued.
func (e *Engine) EditPendingFilter(field jobs.FilterField, value string) error {
	e.mu.Lock()
	err := e.qs.EditPendingFilter(field, value)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish(ReasonEdit)
	return nil
}

// ApplyFilters puts the pending filters in force and refetches from page 0.
func (e *Engine) ApplyFilters() error {
	e.mu.Lock()
	if _, err := e.qs.ApplyFilters(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.enqueueLocked(ReasonFilter)
	e.mu.Unlock()
	e.publish(ReasonFilter)
	return nil
}

// ClearFilters empties all filters and refetches from page 0.
func (e *Engine) ClearFilters() {
	e.mu.Lock()
	e.qs.ClearFilters()
	e.enqueueLocked(ReasonClear)
	e.mu.Unlock()
	e.publish(ReasonClear)
}

// SelectTab switches the status tab and refetches from page 0.
func (e *Engine) SelectTab(tab jobs.Tab) error {
	e.mu.Lock()
	if _, err := e.qs.SelectTab(tab); err != nil {
		e.mu.Unlock()
		return err
	}
	e.enqueueLocked(ReasonTab)
	e.mu.Unlock()
	e.publish(ReasonTab)
	return nil
}

// GoToPage moves to page n, clamped to the known range, and fetches it.
func (e *Engine) GoToPage(n int) {
	e.mu.Lock()
	e.qs.GoToPage(n)
	e.enqueueLocked(ReasonPage)
	e.mu.Unlock()
	e.publish(ReasonPage)
}

// NextPage moves one page forward.
func (e *Engine) NextPage() {
	e.mu.Lock()
	n := e.qs.Snapshot().Page + 1
	e.mu.Unlock()
	e.GoToPage(n)
}

// PrevPage moves one page back.
func (e *Engine) PrevPage() {
	e.mu.Lock()
	n := e.qs.Snapshot().Page - 1
	e.mu.Unlock()
	e.GoToPage(n)
}

// SetSort changes the server-side ordering and refetches from page 0.
func (e *Engine) SetSort(s jobs.Sort) error {
	e.mu.Lock()
	if _, err := e.qs.SetSort(s); err != nil {
		e.mu.Unlock()
		return err
	}
	e.enqueueLocked(ReasonSort)
	e.mu.Unlock()
	e.publish(ReasonSort)
	return nil
}

// RefreshNow fetches the current query immediately. The poll timer is left
// alone.
func (e *Engine) RefreshNow() {
	e.mu.Lock()
	e.enqueueLocked(ReasonRefresh)
	e.mu.Unlock()
}

// NextRefresh returns when the next scheduled poll is due.
func (e *Engine) NextRefresh() (time.Time, bool) {
	return e.poller.NextRun()
}

func (e *Engine) tick() {
	e.mu.Lock()
	e.enqueueLocked(ReasonPoll)
	e.mu.Unlock()
}

// enqueueLocked issues a fetch for the current query. Fetches for any other
// query are superseded: their contexts are cancelled and their results will
// be dropped. A poll tick is skipped while a fetch for the same query is
// still outstanding. Caller must hold e.mu.
func (e *Engine) enqueueLocked(reason string) {
	if !e.active {
		return
	}
	q := e.qs.Query()
	key := q.Key()
	if reason == ReasonPoll && e.outstandingLocked(key) {
		e.logger.Debug("poll skipped, fetch outstanding", zap.String("query", key))
		return
	}
	for seq, old := range e.inflight {
		if old.key == key {
			continue
		}
		old.cancel()
		delete(e.inflight, seq)
	}

	e.seq++
	ctx, cancel := context.WithCancel(e.sessionCtx)
	req := &request{
		seq:     e.seq,
		session: e.session,
		key:     key,
		query:   q,
		reason:  reason,
		cancel:  cancel,
	}
	e.inflight[req.seq] = req
	e.loadingReqs++

	e.wg.Add(1)
	go e.run(ctx, req)
}

func (e *Engine) outstandingLocked(key string) bool {
	for _, req := range e.inflight {
		if req.key == key {
			return true
		}
	}
	return false
}

func (e *Engine) run(ctx context.Context, req *request) {
	defer e.wg.Done()
	defer req.cancel()

	e.publish(ReasonFetch)
	e.logger.Debug("fetch started",
		zap.Uint64("seq", req.seq),
		zap.String("reason", req.reason),
		zap.String("query", req.key),
	)

	start := time.Now()
	page, st, err := e.fetch(ctx, req.query)
	e.logger.Debug("fetch finished",
		zap.Uint64("seq", req.seq),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)

	if reason := e.apply(req, page, st, err); reason != "" {
		e.publish(reason)
	}
}

// fetch gets the page and the stats for q. Without inline stats both
// requests run concurrently.
func (e *Engine) fetch(ctx context.Context, q jobs.Query) (jobs.Page, jobs.Stats, error) {
	if e.agg.Inline() {
		q.WithStats = true
		res, err := e.backend.ListJobs(ctx, q)
		if err != nil {
			return jobs.Page{}, jobs.Stats{}, fmt.Errorf("list jobs: %w", err)
		}
		st, err := e.agg.Aggregate(ctx, q, res.Stats)
		if err != nil {
			return jobs.Page{}, jobs.Stats{}, err
		}
		return res.Page, st, nil
	}

	var (
		res jobs.PageResult
		st  jobs.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = e.backend.ListJobs(gctx, q)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		st, err = e.agg.Aggregate(gctx, q, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return jobs.Page{}, jobs.Stats{}, err
	}
	return res.Page, st, nil
}

// apply records a fetch outcome if the request is still the freshest one
// for the current session and query. It returns the change reason to
// publish, or "" when nothing observable changed.
func (e *Engine) apply(req *request, page jobs.Page, st jobs.Stats, err error) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.session != e.session || !e.active {
		return ""
	}
	_, current := e.inflight[req.seq]
	delete(e.inflight, req.seq)
	if e.loadingReqs > 0 {
		e.loadingReqs--
	}

	// A superseded request was cancelled; its error says nothing about the
	// backend.
	if !current || req.seq <= e.appliedSeq || req.key != e.qs.Query().Key() {
		e.logger.Debug("discarding stale fetch",
			zap.Uint64("seq", req.seq),
			zap.Uint64("applied_seq", e.appliedSeq),
		)
		return ReasonFetch
	}
	e.appliedSeq = req.seq

	if err != nil {
		e.lastErr = err
		e.logger.Warn("refresh failed", zap.String("reason", req.reason), zap.Error(err))
		return ReasonError
	}

	e.stats = st
	e.lastErr = nil
	if e.qs.SetTotalPages(page.TotalPages) {
		// The cursor was past the last page; fetch the clamped one instead of
		// showing an empty page.
		e.enqueueLocked(ReasonPage)
		return ReasonPage
	}
	e.page = page.Clone()
	if e.page.Rows == nil {
		e.page.Rows = []jobs.Job{}
	}
	e.hasData = true
	e.lastUpdated = e.now()
	return ReasonApplied
}

func (e *Engine) publish(reason string) {
	e.events.Publish(realtime.Event{Type: realtime.TypeStateChanged, Reason: reason})
}

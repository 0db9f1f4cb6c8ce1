package monitor

import (
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/querystate"
)

// Snapshot is a read-only copy of everything the presentation layer shows.
// It shares no memory with the Engine.
type Snapshot struct {
	Query            querystate.State
	HasActiveFilters bool
	Page             jobs.Page
	Stats            jobs.Stats
	// HasData is false until the first successful fetch.
	HasData     bool
	Loading     bool
	Active      bool
	LastUpdated time.Time
	LastError   error
	NextRefresh time.Time
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	next, _ := e.poller.NextRun()

	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Query:            e.qs.Snapshot(),
		HasActiveFilters: e.qs.HasActiveFilters(),
		Page:             e.page.Clone(),
		Stats:            e.stats,
		HasData:          e.hasData,
		Loading:          e.loadingReqs > 0,
		Active:           e.active,
		LastUpdated:      e.lastUpdated,
		LastError:        e.lastErr,
		NextRefresh:      next,
	}
}

// Query returns the canonical query for the current state.
func (e *Engine) Query() jobs.Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.qs.Query()
}

// Package stats produces the per-status counts shown on the tabs.
//
// Two strategies exist. Local counts a full unpaged listing in memory and is
// only correct when the whole population fits in one response. Remote adopts
// the backend's own aggregate, either from a dedicated endpoint or inline
// with the page response.
package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

// Mode selects an Aggregator strategy.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeInline Mode = "inline"
	ModeLocal  Mode = "local"
)

// ParseMode parses a mode name. Blank input yields ModeRemote.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeRemote, nil
	case ModeRemote, ModeInline, ModeLocal:
		return m, nil
	}
	return "", fmt.Errorf("unknown stats mode %q", s)
}

// Source is the part of the backend client the strategies read from.
type Source interface {
	GetStats(ctx context.Context, q jobs.Query) (jobs.Stats, error)
	ListAll(ctx context.Context, q jobs.Query) ([]jobs.Job, error)
}

// Aggregator computes the counts for the population q selects, ignoring
// q's page, ordering and status constraint.
type Aggregator interface {
	Mode() Mode
	// Inline reports whether the page request should ask for stats.
	Inline() bool
	// Aggregate returns the counts. inline holds stats that arrived with
	// the page response, or nil.
	Aggregate(ctx context.Context, q jobs.Query, inline *jobs.Stats) (jobs.Stats, error)
}

// New returns the strategy for mode.
func New(mode Mode, src Source) (Aggregator, error) {
	switch mode {
	case ModeRemote, "":
		return NewRemote(src, false), nil
	case ModeInline:
		return NewRemote(src, true), nil
	case ModeLocal:
		return &Local{src: src}, nil
	}
	return nil, fmt.Errorf("unknown stats mode %q", mode)
}

// Count tallies rows by status. ALL always equals the sum of the buckets.
func Count(rows []jobs.Job) jobs.Stats {
	var s jobs.Stats
	for _, j := range rows {
		s.Add(j.Status)
	}
	return s
}

// Local counts a full listing fetched from the backend.
type Local struct {
	src Source
}

func (l *Local) Mode() Mode   { return ModeLocal }
func (l *Local) Inline() bool { return false }

// Aggregate lists every matching execution and counts them.
func (l *Local) Aggregate(ctx context.Context, q jobs.Query, _ *jobs.Stats) (jobs.Stats, error) {
	rows, err := l.src.ListAll(ctx, q.StatsQuery())
	if err != nil {
		return jobs.Stats{}, fmt.Errorf("local stats: %w", err)
	}
	return Count(rows), nil
}

// Remote adopts the backend's counts verbatim.
type Remote struct {
	src    Source
	inline bool
}

// NewRemote returns a Remote aggregator. With inline set the page request
// carries the stats and the dedicated endpoint is only a fallback.
func NewRemote(src Source, inline bool) *Remote { return &Remote{src: src, inline: inline} }

func (r *Remote) Mode() Mode {
	if r.inline {
		return ModeInline
	}
	return ModeRemote
}

func (r *Remote) Inline() bool { return r.inline }

// Aggregate returns inline when present, otherwise asks the stats endpoint.
func (r *Remote) Aggregate(ctx context.Context, q jobs.Query, inline *jobs.Stats) (jobs.Stats, error) {
	if inline != nil {
		return *inline, nil
	}
	s, err := r.src.GetStats(ctx, q.StatsQuery())
	if err != nil {
		return jobs.Stats{}, fmt.Errorf("remote stats: %w", err)
	}
	return s, nil
}

// Package store persists job executions for the reference backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

var (
	// ErrNotFound is returned when no execution matches the lookup.
	ErrNotFound = errors.New("job execution not found")
	// ErrConflict is returned when a (jobName, runId) pair is reported twice.
	ErrConflict = errors.New("job execution already exists")
	// ErrInvalidRequest is returned for requests missing identifying fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// JobStore is the interface for persisting and querying job executions.
type JobStore interface {
	StartJob(ctx context.Context, req jobs.StartRequest, at time.Time) (*jobs.Job, error)
	UpdateJob(ctx context.Context, req jobs.UpdateRequest, now time.Time) (*jobs.Job, error)
	GetJob(ctx context.Context, id int64) (*jobs.Job, error)
	ListJobs(ctx context.Context, q jobs.Query) (jobs.Page, error)
	ListAll(ctx context.Context, q jobs.Query) ([]jobs.Job, error)
	Stats(ctx context.Context, q jobs.Query) (jobs.Stats, error)
}

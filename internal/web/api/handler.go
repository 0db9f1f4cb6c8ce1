// Package api serves the job-execution HTTP API the monitoring client
// consumes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/realtime"
	"github.com/patrickspencer/runwatch/internal/store"
)

// API holds dependencies for all API handlers.
type API struct {
	Store    store.JobStore
	Events   *realtime.Broker
	Logger   *zap.Logger
	PageSize int
	Now      func() time.Time
}

// RegisterRoutes registers all API routes under r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/health", a.handleHealth)
	r.Get("/events", a.handleEvents)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", a.handleListJobs)
		r.Post("/", a.handleStartJob)
		r.Put("/", a.handleUpdateJob)
		r.Get("/stats", a.handleStats)
		r.Get("/all", a.handleListAll)
		r.Get("/{id}", a.handleGetJob)
	})
}

func (a *API) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *API) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now()
}

func (a *API) pageSize() int {
	if a.PageSize <= 0 {
		return store.DefaultPageSize
	}
	return a.PageSize
}

// writeJSON writes a JSON response with the given status code.
func (a *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger().Error("failed to write JSON response", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		a.logger().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidRequest), errors.Is(err, jobs.ErrInvalidQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

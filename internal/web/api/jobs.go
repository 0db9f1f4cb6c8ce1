package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/store"
)

const maxBodyBytes = 1 << 20

func (a *API) parseQuery(r *http.Request) (jobs.Query, error) {
	return jobs.ParseQuery(r.URL.Query(), a.pageSize())
}

func (a *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q, err := a.parseQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	page, err := a.Store.ListJobs(r.Context(), q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res := jobs.PageResult{Page: page}
	if q.WithStats {
		st, err := a.Store.Stats(r.Context(), q.StatsQuery())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		res.Stats = &st
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	q, err := a.parseQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	st, err := a.Store.Stats(r.Context(), q.StatsQuery())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, st)
}

func (a *API) handleListAll(w http.ResponseWriter, r *http.Request) {
	q, err := a.parseQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rows, err := a.Store.ListAll(r.Context(), q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.writeError(w, r, fmt.Errorf("%w: invalid id %q", store.ErrInvalidRequest, raw))
		return
	}
	j, err := a.Store.GetJob(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, j)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", store.ErrInvalidRequest, err)
	}
	return nil
}

func (a *API) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	j, err := a.Store.StartJob(r.Context(), req, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.logger().Info("job started",
		zap.Int64("id", j.ID),
		zap.String("job", j.JobName),
		zap.String("run_id", j.RunID),
	)
	a.emitJobChanged("started", j)
	a.writeJSON(w, http.StatusOK, j)
}

func (a *API) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.UpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	j, err := a.Store.UpdateJob(r.Context(), req, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.logger().Info("job updated",
		zap.Int64("id", j.ID),
		zap.String("job", j.JobName),
		zap.String("run_id", j.RunID),
		zap.String("status", string(j.Status)),
	)
	a.emitJobChanged("updated", j)
	a.writeJSON(w, http.StatusOK, j)
}

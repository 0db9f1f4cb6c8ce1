package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/realtime"
)

const pingInterval = 20 * time.Second

func (a *API) emitJobChanged(reason string, j *jobs.Job) {
	if a.Events == nil || j == nil {
		return
	}
	a.Events.Publish(realtime.Event{
		Type:    realtime.TypeJobChanged,
		Reason:  reason,
		JobID:   j.ID,
		JobName: j.JobName,
		RunID:   j.RunID,
		Status:  string(j.Status),
	})
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.Events == nil {
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "realtime stream unavailable"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	events, cancel := a.Events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

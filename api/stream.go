package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// heartbeatInterval keeps idle proxies from closing the stream.
const heartbeatInterval = 25 * time.Second

// StreamConsequences pushes the day's consequence panel as Server-Sent
// Events: one "state" event on connect and one after every change to the
// profile's log, whoever wrote it. Events carry the full DayStateDTO.
func (h *Handler) StreamConsequences(w http.ResponseWriter, r *http.Request) {
	e, p, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	day, err := h.dayParam(r, p)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (want YYYY-MM-DD)", err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	// Coalesce bursts: one pending notification is enough because each
	// event re-reads the latest snapshot.
	changed := make(chan struct{}, 1)
	cancel := e.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() bool {
		data, err := json.Marshal(toDayStateDTO(e.Profile(), day, e.States(day)))
		if err != nil {
			log.Printf("[Stream] Encoding state for %s failed: %v", p.ID, err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			if !send() {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

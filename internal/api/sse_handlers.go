package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/entrepeneur4lyf/spark/internal/events"
)

const sseKeepAlive = 15 * time.Second

// handleEventsSSE streams the same events as /ws for clients that cannot
// open a WebSocket.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.writeError(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var filters []events.EventFilter
	if id := r.URL.Query().Get("session_id"); id != "" {
		filters = append(filters, events.FilterBySessionID(id))
	}
	lastID := r.Header.Get("Last-Event-ID")
	if lastID == "" {
		lastID = r.URL.Query().Get("last_event_id")
	}
	ch := s.broker.SubscribeAfter(r.Context(), lastID, filters...)

	fmt.Fprintf(w, "event: connected\ndata: {\"timestamp\": %d}\n\n", time.Now().Unix())
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("Failed to encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/wizards/pkg/domain"
	"github.com/oapi-codegen/runtime"
)

// Watch filters accepted by the events endpoint.
const (
	WatchStartingMessage = "starting_message"
	WatchInteractions    = "interactions"
)

// SubscribeEvents handles GET /drawers/{id}/events (SSE). The first event
// carries the whole state; each later one is a diff. The stream ends when
// the client disconnects or the drawer closes.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "Streaming not supported")
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var watch *string
	if err := runtime.BindQueryParameter("form", true, false, "watch", r.URL.Query(), &watch); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid format for parameter watch: "+err.Error())
		return
	}
	var watchList []string
	if watch != nil && *watch != "" {
		for _, field := range strings.Split(*watch, ",") {
			watchList = append(watchList, strings.TrimSpace(field))
		}
	}

	d, ok := s.drawer(w, r)
	if !ok {
		return
	}

	diffs, cancel := d.Watch()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to drawer updates", "drawer_id", d.ID())
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "drawer_id", d.ID())
			return
		case diff, ok := <-diffs:
			if !ok {
				fmt.Fprintf(w, "event: closed\ndata: %s\n\n", d.ID())
				flusher.Flush()
				return
			}
			if !matches(diff, watchList) {
				continue
			}
			payload, err := json.Marshal(diff)
			if err != nil {
				s.logger.Error("SSE: Failed to encode diff", "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// matches reports whether diff touches any of the watched fields.
// An empty list matches everything.
func matches(diff *domain.StateDiff, watchList []string) bool {
	if len(watchList) == 0 {
		return true
	}
	for _, field := range watchList {
		switch field {
		case WatchStartingMessage:
			if diff.ShowStartingMessage != nil || diff.IndicateCheckbox != nil {
				return true
			}
		case WatchInteractions:
			if len(diff.Appended) > 0 || len(diff.Updated) > 0 {
				return true
			}
		}
	}
	return false
}

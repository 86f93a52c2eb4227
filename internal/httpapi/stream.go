package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"slotlist.org/internal/stream"
)

// missionEvents handles Server-Sent Events for one mission's slotlist
// activity. Visibility is checked once at subscription time.
func (a *API) missionEvents(w http.ResponseWriter, r *http.Request, slug string) {
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	m, ok := a.visibleMission(w, r, slug)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx, m.Slug)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// publishSlotEvent is a no-op when streaming is disabled.
func (a *API) publishSlotEvent(evt stream.SlotEvent) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(evt)
}

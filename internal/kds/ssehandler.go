package kds

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SSEHandler streams ticket change events to connected kitchen and expo
// boards over Server-Sent Events. Each connection is one board subscription
// on the dispatcher; teardown unsubscribes so no listener leaks.
type SSEHandler struct {
	dispatcher *Dispatcher
	logger     apt.Logger
}

func NewSSEHandler(dispatcher *Dispatcher, logger apt.Logger) *SSEHandler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &SSEHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/kds/stream", h.Stream)
}

// Stream implements the SSE endpoint. An optional ?station= query filters
// events to one station's board.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	stationFilter := strings.ToLower(r.URL.Query().Get("station"))

	boardID := uuid.New().String()
	h.logger.Info("new board connection", "board_id", boardID, "station", stationFilter)

	eventChan := h.dispatcher.Subscribe(boardID)
	defer h.dispatcher.Unsubscribe(boardID)

	// Establish the stream and tell clients how fast to retry on drops.
	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flush(w)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("board disconnected", "board_id", boardID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case evt, ok := <-eventChan:
			if !ok {
				// Feed is gone; tell the board so it refetches instead of
				// trusting a stale projection.
				sendSSEEvent(w, "subscription-lost", []byte(`{"action":"refetch"}`))
				h.logger.Info("board channel closed", "board_id", boardID)
				return
			}

			if stationFilter != "" && !matchesStation(evt.Data, stationFilter) {
				continue
			}

			sendSSEEvent(w, "ticket-update", evt.Data)
		}
	}
}

// matchesStation peeks at the event metadata to apply the board's station
// filter. Events without a parsable station pass through so boards never
// silently lose data.
func matchesStation(data []byte, stationCode string) bool {
	var meta struct {
		Station string `json:"station"`
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.Station == "" {
		return true
	}
	return strings.ToLower(meta.Station) == stationCode
}

// sendSSEEvent writes one event with properly prefixed multi-line data.
func sendSSEEvent(w http.ResponseWriter, eventType string, data []byte) {
	fmt.Fprintf(w, "event: %s\n", eventType)

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}

	fmt.Fprintf(w, "\n")
	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alertpipe/alertpipe/internal/bus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// EventsWSHandler streams pipeline lifecycle events to websocket clients.
// Each client gets its own bus subscription; a slow client loses events
// rather than stalling the pipeline.
type EventsWSHandler struct {
	bus      *bus.Bus
	upgrader websocket.Upgrader
}

// NewEventsWSHandler creates a websocket event feed over the bus
func NewEventsWSHandler(b *bus.Bus) *EventsWSHandler {
	return &EventsWSHandler{
		bus: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Clients authenticate with JWT before upgrading
				return true
			},
		},
	}
}

// SetupRoutes sets up the websocket route
func (h *EventsWSHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/events", h.handleEvents)
}

// handleEvents handles GET /ws/events
func (h *EventsWSHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("EventsWSHandler: Upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("EventsWSHandler: Close failed: %v", err)
		}
	}()

	events, unsubscribe := h.bus.Subscribe(128)
	defer unsubscribe()

	log.Printf("EventsWSHandler: Client connected from %s", r.RemoteAddr)

	// Reader goroutine: detect client disconnects and discard input
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("EventsWSHandler: Write to %s failed: %v", r.RemoteAddr, err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Printf("EventsWSHandler: Client %s disconnected", r.RemoteAddr)
			return
		}
	}
}

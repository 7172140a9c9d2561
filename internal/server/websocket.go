package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		return true
	},
}

// Event is a store-change notification pushed to connected clients, so
// several browser tabs looking at the same image stay in sync.
type Event struct {
	Type    string `json:"type"`
	ImageID string `json:"image_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// subscriber wraps one connection with a write mutex; gorilla/websocket
// allows at most one concurrent writer per Conn, and broadcasts run from
// whichever handler goroutine triggered them.
type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// hub fans out events to all connected websocket subscribers.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]*subscriber
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]*subscriber)}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = &subscriber{conn: c}
	h.mu.Unlock()
	websocketConnections.Inc()
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		websocketConnections.Dec()
	}
	h.mu.Unlock()
	_ = c.Close()
}

// broadcast sends the event to every subscriber, dropping connections whose
// writes fail.
func (h *hub) broadcast(ev Event) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.conns))
	for _, sub := range h.conns {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.writeJSON(ev); err != nil {
			slog.Debug("Dropping websocket subscriber", "error", err)
			h.remove(sub.conn)
		}
	}
}

// eventsHandler upgrades the connection and keeps it registered until the
// client goes away. The read loop discards inbound messages; the socket is
// broadcast-only.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	s.hub.add(conn)
	slog.Info("WebSocket subscriber connected", "remote_addr", r.RemoteAddr)

	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

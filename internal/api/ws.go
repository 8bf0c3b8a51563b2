package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cutroom/cutroom-agent/internal/player"
	"github.com/cutroom/cutroom-agent/internal/timecode"
)

const wsWriteTimeout = 5 * time.Second

// PositionMessage is the websocket frame pushed on every throttled player
// time update.
type PositionMessage struct {
	Type            string  `json:"type"`
	Time            float64 `json:"time"`
	Display         string  `json:"display"`
	State           string  `json:"state"`
	Playing         bool    `json:"playing"`
	ActiveClipID    string  `json:"active_clip_id,omitempty"`
	Duration        float64 `json:"duration"`
	DurationDisplay string  `json:"duration_display"`
}

// Hub fans player position updates out to connected websocket clients. The
// server binds to loopback, so the origin check accepts local UIs.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		h.mu.Lock()
		h.clients[conn] = true
		count := len(h.clients)
		h.mu.Unlock()
		h.logger.Info("websocket client connected", "clients", count)

		// Clients never send anything meaningful; the read loop exists to
		// observe the close frame.
		go func() {
			defer h.drop(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client disconnected", "clients", count)
}

// BroadcastPosition pushes the player's position to every connected client.
// Wired as the player's time listener, so throttling happens upstream.
func (h *Hub) BroadcastPosition(t float64, st player.Status) {
	msg := PositionMessage{
		Type:            "position",
		Time:            t,
		Display:         timecode.Duration(t),
		State:           st.State,
		Playing:         st.Playing,
		ActiveClipID:    st.ActiveClipID,
		Duration:        st.Duration,
		DurationDisplay: timecode.Duration(st.Duration),
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.drop(conn)
		}
	}
}

// ClientCount reports connected clients, for the status surface.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

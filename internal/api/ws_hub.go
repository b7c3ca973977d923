package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moneyclicker/idle-engine/internal/metrics"
	"github.com/moneyclicker/idle-engine/internal/model"
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type      string          `json:"type"` // "snapshot"
	SessionID string          `json:"session_id"`
	Snapshot  *model.Snapshot `json:"snapshot,omitempty"`
}

type wsFrame struct {
	sessionID string
	data      []byte
}

// WSHub manages WebSocket connections and pushes every snapshot to the
// clients watching that session. A client connected without a session
// filter receives all sessions.
type WSHub struct {
	clients    map[*websocket.Conn]string // conn -> watched session, "" = all
	broadcast  chan wsFrame
	register   chan wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

type wsClient struct {
	conn      *websocket.Conn
	sessionID string
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan wsFrame, 256),
		register:   make(chan wsClient),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c.sessionID
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client connected", "session", c.sessionID, "total", total)

		case conn := <-h.unregister:
			h.drop(conn)

		case f := <-h.broadcast:
			h.mu.RLock()
			var dead []*websocket.Conn
			for conn, watched := range h.clients {
				if watched != "" && watched != f.sessionID {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
					dead = append(dead, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range dead {
				h.drop(conn)
			}
		}
	}
}

func (h *WSHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		metrics.WebSocketClients.Dec()
	}
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a snapshot to the clients watching sessionID.
func (h *WSHub) Broadcast(sessionID string, snap model.Snapshot) {
	data, err := json.Marshal(WSMessage{Type: "snapshot", SessionID: sessionID, Snapshot: &snap})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- wsFrame{sessionID: sessionID, data: data}:
	default:
		// Drop if buffer full to avoid blocking the engine; the next
		// snapshot supersedes this one.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws. The
// optional ?session= query parameter limits the stream to one session.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- wsClient{conn: conn, sessionID: r.URL.Query().Get("session")}

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}()
}

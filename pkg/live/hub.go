// Package live streams completed request records to websocket clients.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nicktill/obsdemo/pkg/config"
	"github.com/nicktill/obsdemo/pkg/httpx"
	"github.com/nicktill/obsdemo/pkg/tracing"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow same-origin requests, or requests with no Origin header
		// No Origin header = direct connection (non-browser clients like curl, testing tools)
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		httpx.RespondErrorString(w, status, reason.Error())
	},
}

// Hub manages websocket connections for the live request feed
type Hub struct {
	// Registered clients
	clients map[*websocket.Conn]bool

	// Register requests from clients
	register chan *websocket.Conn

	// Unregister requests from clients
	unregister chan *websocket.Conn

	// Broadcast channel for encoded records
	broadcast chan []byte

	// done is closed when Run returns
	done chan struct{}

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewHub creates a new websocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled,
// closing every client connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("live feed client connected", zap.Int("clients", count))
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("live feed client disconnected", zap.Int("clients", count))
		case message := <-h.broadcast:
			h.mu.RLock()
			// Collect failed connections to unregister after releasing lock
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn("live feed write failed", zap.Error(err))
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			// Dropped inline: sending on unregister from the loop that drains it could block
			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					delete(h.clients, conn)
					conn.Close()
				}
				h.mu.Unlock()
			}
		}
	}
}

// Publish implements httpx.Sink. It never blocks: with no clients or a
// full buffer the record is dropped.
func (h *Hub) Publish(rec httpx.Record) {
	if !h.HasClients() {
		return
	}
	if err := h.Broadcast(rec); err != nil {
		h.logger.Warn("failed to encode live record", zap.Error(err))
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(data interface{}) error {
	message, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
	default:
		// Channel full, drop message to prevent blocking
		h.logger.Warn("live feed buffer full, dropping record")
	}
	return nil
}

// HasClients returns true if there are any connected websocket clients
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the client goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// The upgrader writes the 101 response itself and ignores w.Header()
	conn, err := upgrader.Upgrade(w, r, upgradeHeader(w))
	if err != nil {
		// The upgrader has already written an HTTP error response
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if !h.send(h.register, conn) {
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Start ping sender to keep connection alive
	go func() {
		ticker := time.NewTicker(config.WSPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(config.WSWriteDeadline)); err != nil {
					return
				}
			}
		}
	}()

	defer func() {
		cancel()
		if !h.send(h.unregister, conn) {
			conn.Close()
		}
	}()

	conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		return nil
	})

	// Read messages (mostly for handling control frames)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

// upgradeHeader carries the trace ID already set on w into the handshake response.
func upgradeHeader(w http.ResponseWriter) http.Header {
	ids := w.Header().Values(tracing.HeaderTraceID)
	if len(ids) == 0 {
		return nil
	}
	return http.Header{tracing.HeaderTraceID: ids}
}

// send hands conn to the hub loop, giving up once the loop has stopped.
func (h *Hub) send(ch chan *websocket.Conn, conn *websocket.Conn) bool {
	select {
	case ch <- conn:
		return true
	case <-h.done:
		return false
	}
}

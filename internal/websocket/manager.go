// Package websocket streams registry events to admin clients.
package websocket

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is how many events may queue for one client before it is
	// disconnected as too slow.
	sendBuffer = 64
)

// Message types sent to clients
const (
	TypeHello      = "HELLO"
	TypeEvent      = "EVENT"
	TypeSubscribed = "SUBSCRIBED"
	TypeError      = "ERROR"
)

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	MessageID string             `json:"message_id"`
	Type      string             `json:"type"`
	Event     *httpservice.Event `json:"event,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// ClientMessage represents a message received from client
type ClientMessage struct {
	MessageID string     `json:"message_id"`
	Subscribe *Subscribe `json:"subscribe,omitempty"`
}

// Subscribe narrows the events a client receives. Empty fields match all.
type Subscribe struct {
	Owner  string                  `json:"owner,omitempty"`
	Prefix string                  `json:"prefix,omitempty"`
	Types  []httpservice.EventType `json:"types,omitempty"`
}

func (s *Subscribe) matches(e httpservice.Event) bool {
	if s == nil {
		return true
	}
	if s.Owner != "" && e.Owner != s.Owner {
		return false
	}
	if s.Prefix != "" && !hasPathPrefix(e.ContextPath, s.Prefix) && !hasPathPrefix(e.Alias, s.Prefix) {
		return false
	}
	if len(s.Types) > 0 && !slices.Contains(s.Types, e.Type) {
		return false
	}
	return true
}

func hasPathPrefix(p, prefix string) bool {
	if prefix == "/" {
		return p != ""
	}
	if len(p) < len(prefix) || p[:len(prefix)] != prefix {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}

// clientConnection represents a connected WebSocket client
type clientConnection struct {
	id   string
	conn *websocket.Conn
	send chan ServerMessage

	mu     sync.Mutex
	filter *Subscribe
	closed bool
}

func (c *clientConnection) wants(e httpservice.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.matches(e)
}

func (c *clientConnection) setFilter(s *Subscribe) {
	c.mu.Lock()
	c.filter = s
	c.mu.Unlock()
}

// Manager fans registry events out to WebSocket subscribers. It implements
// httpservice.Listener.
type Manager struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[string]*clientConnection
}

// NewManager creates a new WebSocket manager. An empty allowedOrigins list
// or one containing "*" accepts any origin.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("websocket-manager"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients: make(map[string]*clientConnection),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HandleConnection upgrades the request and starts streaming events
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &clientConnection{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan ServerMessage, sendBuffer),
	}

	m.clientsMu.Lock()
	m.clients[client.id] = client
	m.clientsMu.Unlock()

	m.logger.Info("WebSocket client connected",
		zap.String("client_id", client.id),
		zap.String("remote_addr", r.RemoteAddr))

	client.send <- ServerMessage{MessageID: client.id, Type: TypeHello}

	go m.writePump(client)
	go m.readPump(client)
}

// HandleEvent implements httpservice.Listener
func (m *Manager) HandleEvent(e httpservice.Event) {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()

	for _, client := range m.clients {
		if !client.wants(e) {
			continue
		}
		ev := e
		m.deliver(client, ServerMessage{MessageID: uuid.NewString(), Type: TypeEvent, Event: &ev})
	}
}

// deliver queues msg for the client, dropping the client when its buffer
// is full.
func (m *Manager) deliver(c *clientConnection, msg ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		m.logger.Warn("WebSocket client too slow, disconnecting", zap.String("client_id", c.id))
		c.closed = true
		close(c.send)
	}
}

func (m *Manager) readPump(c *clientConnection) {
	defer m.remove(c)

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Error("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			m.deliver(c, ServerMessage{MessageID: msg.MessageID, Type: TypeError, Error: "invalid message"})
			continue
		}

		if msg.Subscribe == nil {
			m.deliver(c, ServerMessage{MessageID: msg.MessageID, Type: TypeError, Error: "unknown request"})
			continue
		}

		c.setFilter(msg.Subscribe)
		m.logger.Debug("WebSocket client subscribed",
			zap.String("client_id", c.id),
			zap.String("owner", msg.Subscribe.Owner),
			zap.String("prefix", msg.Subscribe.Prefix))
		m.deliver(c, ServerMessage{MessageID: msg.MessageID, Type: TypeSubscribed})
	}
}

func (m *Manager) writePump(c *clientConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) remove(c *clientConnection) {
	m.clientsMu.Lock()
	delete(m.clients, c.id)
	m.clientsMu.Unlock()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()

	m.logger.Info("WebSocket client disconnected", zap.String("client_id", c.id))
}

// ClientCount returns the number of connected clients
func (m *Manager) ClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

// Close disconnects all clients
func (m *Manager) Close() {
	m.clientsMu.Lock()
	clients := m.clients
	m.clients = make(map[string]*clientConnection)
	m.clientsMu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		c.mu.Unlock()
	}
}

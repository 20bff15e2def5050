package ws

import (
	"context"
	"sync"
	"time"

	"github.com/frankieli/base_tombala/internal/config"
	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/gorilla/websocket"
)

type CloseReason string

const (
	ReasonWriteError CloseReason = "write_error"
	ReasonPingError  CloseReason = "ping_error"
	ReasonReadError  CloseReason = "read_error"
	ReasonShutdown   CloseReason = "server_shutdown"
	ReasonBufferFull CloseReason = "buffer_full"
	ReasonTimeout    CloseReason = "timeout"
)

// Connection is one event-stream subscriber. Player is empty for
// anonymous viewers.
type Connection struct {
	ID        string
	Player    string
	Conn      *websocket.Conn
	Send      chan []byte
	manager   *Manager
	closeOnce sync.Once
}

// Manager manages all WebSocket connections
type Manager struct {
	cfg        config.WebSocketConfig
	clients    map[string]*Connection
	register   chan *Connection
	unregister chan *Connection
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewManager creates a new connection manager
func NewManager(cfg config.WebSocketConfig) *Manager {
	return &Manager{
		cfg:        cfg,
		clients:    make(map[string]*Connection),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		done:       make(chan struct{}),
	}
}

// Register registers a new connection
func (m *Manager) Register(conn *websocket.Conn, id, player string) *Connection {
	c := &Connection{
		ID:      id,
		Player:  player,
		Conn:    conn,
		Send:    make(chan []byte, m.cfg.SendBuffer),
		manager: m,
	}
	select {
	case m.register <- c:
	case <-m.done:
		c.CloseWithReason(ReasonShutdown, nil)
	}
	return c
}

// Run starts the manager loop and returns when ctx is done
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.stopOnce.Do(func() { close(m.done) })
			m.Shutdown()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client.ID]; ok {
				delete(m.clients, client.ID)
			}
			m.mu.Unlock()
		}
	}
}

// Count returns the number of registered connections
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Broadcast sends a message to all connected local clients
func (m *Manager) Broadcast(message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		select {
		case client.Send <- message:
		default:
			// Slow reader. ReadPump unregisters it once the socket closes.
			client.CloseWithReason(ReasonBufferFull, nil)
		}
	}
}

// SendToPlayer sends a message to every connection of one player
func (m *Manager) SendToPlayer(player string, message []byte) {
	m.mu.RLock()
	targets := make([]*Connection, 0, 1)
	for _, client := range m.clients {
		if client.Player != "" && client.Player == player {
			targets = append(targets, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(message)
	}
}

// SendTo sends a message to one connection
func (m *Manager) SendTo(id string, message []byte) {
	m.mu.RLock()
	client, ok := m.clients[id]
	m.mu.RUnlock()

	if ok {
		client.enqueue(message)
	}
}

func (c *Connection) enqueue(message []byte) {
	select {
	case c.Send <- message:
		return
	default:
	}

	select {
	case c.Send <- message:
	case <-time.After(c.manager.cfg.WriteWait):
		c.CloseWithReason(ReasonTimeout, nil)
	}
}

// Shutdown closes all connections
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.CloseWithReason(ReasonShutdown, nil)
	}
}

// CloseWithReason closes the connection with a reason
func (c *Connection) CloseWithReason(r CloseReason, err error) {
	c.closeOnce.Do(func() {
		event := logger.Info(context.Background())
		if err != nil {
			event = logger.Warn(context.Background()).Err(err)
		}
		event.
			Str("conn_id", c.ID).
			Str("player", c.Player).
			Str("reason", string(r)).
			Msg("ws connection closed")
		c.Conn.Close()
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Connection) WritePump() {
	cfg := c.manager.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.CloseWithReason(ReasonPingError, err)
				return
			}
		}
	}
}

// ReadPump pumps messages from the websocket connection to handleMessage
// until the socket fails, then unregisters the connection
func (c *Connection) ReadPump(handleMessage func(c *Connection, message []byte)) {
	cfg := c.manager.cfg
	var readErr error
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.CloseWithReason(ReasonReadError, readErr)
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				readErr = err
			}
			break
		}

		handleMessage(c, message)
	}
}

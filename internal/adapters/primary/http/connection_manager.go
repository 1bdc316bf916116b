package http

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gitscope/gitscope/internal/domain/ports"
)

// ConnectionManager tracks WebSocket clients and fans broadcast events out to
// them. All bookkeeping happens on the Run goroutine; the channels keep the
// HTTP handlers lock-free.
type ConnectionManager struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan ports.UpdateEvent
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

// Client represents a single WebSocket connection.
type Client struct {
	conn    *websocket.Conn
	send    chan ports.UpdateEvent
	manager *ConnectionManager
}

// NewConnectionManager creates a connection manager. Call Run to start it.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan ports.UpdateEvent, 16),
		done:       make(chan struct{}),
	}
}

// Run processes register, unregister and broadcast requests until the context
// is cancelled or CloseAll is called.
func (m *ConnectionManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeClients()
			return
		case <-m.done:
			m.closeClients()
			return
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			m.mu.Unlock()
		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			m.mu.Unlock()
		case event := <-m.broadcast:
			m.mu.RLock()
			for client := range m.clients {
				select {
				case client.send <- event:
				default:
					// Slow client, drop the event rather than block
					// everyone else.
				}
			}
			m.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for delivery to every connected client.
func (m *ConnectionManager) Broadcast(event ports.UpdateEvent) {
	select {
	case m.broadcast <- event:
	case <-m.done:
	case <-time.After(time.Second):
	}
}

// ClientCount returns the number of connected clients.
func (m *ConnectionManager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// unregisterClient hands a client back to the Run loop, or drops it when the
// manager has already shut down.
func (m *ConnectionManager) unregisterClient(c *Client) {
	select {
	case m.unregister <- c:
	case <-m.done:
	}
}

// CloseAll disconnects every client and stops the Run loop.
func (m *ConnectionManager) CloseAll() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *ConnectionManager) closeClients() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.clients {
		close(client.send)
		_ = client.conn.Close()
		delete(m.clients, client)
	}
}

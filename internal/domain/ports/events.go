package ports

import "time"

// Event types pushed to WebSocket clients.
const (
	EventTypeConnected = "connected"
	EventTypeChanged   = "changed"
)

// UpdateEvent is a push notification delivered to connected UI clients.
type UpdateEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ClientNotifier broadcasts update events to connected clients.
type ClientNotifier interface {
	NotifyClients(event UpdateEvent) error
}

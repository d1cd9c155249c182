package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// OrderUpdate is pushed to connected buyer apps when a seller platform
// confirms an order.
type OrderUpdate struct {
	TransactionID string `json:"transaction_id"`
	MessageID     string `json:"message_id"`
	BppID         string `json:"bpp_id,omitempty"`
	Status        string `json:"status"`
}

// Hub manages WebSocket clients and broadcasts order updates to them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	Updates     chan OrderUpdate
	mu          sync.Mutex
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		Updates:     make(chan OrderUpdate, 16),
	}
}

// Publish queues an update for broadcast without blocking the caller.
func (h *Hub) Publish(update OrderUpdate) {
	select {
	case h.Updates <- update:
	default:
	}
}

// Run processes register/unregister/update events until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				conn.Close()
				delete(h.connections, conn)
			}
			h.mu.Unlock()
			return
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case update := <-h.Updates:
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

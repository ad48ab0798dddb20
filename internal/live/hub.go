// Package live broadcasts desk events (check-ins, entry/exit scans, pass
// issues) to staff dashboards over WebSocket. Publishing is best-effort:
// a slow or absent dashboard never blocks a desk operation.
package live

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types published to dashboards.
const (
	EventCheckin = "checkin"
	EventEntry   = "entry"
	EventExit    = "exit"
	EventPass    = "pass"
)

// Event is one desk occurrence.
type Event struct {
	Type  string    `json:"type"`
	Badge string    `json:"badge,omitempty"`
	Email string    `json:"email,omitempty"`
	Name  string    `json:"name,omitempty"`
	At    time.Time `json:"at"`
}

// Hub maintains the set of connected dashboard clients and fans events
// out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates a dashboard hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", zap.String("staff", c.email))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard client disconnected", zap.String("staff", c.email))
}

// Publish fans an event out to all connected clients, dropping it for
// clients whose send buffer is full.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
		}
	}
}

// Package realtime delivers notification pushes to connected WebSocket
// clients. Each connection joins its user room, and super_admins also join
// the shared reviewer room.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eventviewer/server/internal/domain/notifications"
	"github.com/eventviewer/server/internal/metrics"
	"github.com/rs/zerolog"
)

// sendBuffer is how many pushes a client may lag behind before it is dropped.
const sendBuffer = 32

// Client is one registered connection. Send is closed when the client leaves
// or is dropped for falling behind.
type Client struct {
	Send  <-chan []byte
	send  chan []byte
	rooms []string
}

// Hub is the in-process room registry. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger.With().Str("component", "realtime").Logger(),
	}
}

// Join registers a client in rooms.
func (h *Hub) Join(rooms ...string) *Client {
	ch := make(chan []byte, sendBuffer)
	c := &Client{Send: ch, send: ch, rooms: rooms}

	h.mu.Lock()
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	h.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	return c
}

// Leave unregisters c. Calling it twice is a no-op.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if c.rooms == nil {
		return
	}
	for _, room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.rooms = nil
	close(c.send)
	metrics.RealtimeConnections.Dec()
}

// Connections counts distinct registered clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

// Deliver pushes msg to every local client in msg.Room. Clients whose buffer
// is full are dropped instead of blocking the sender.
func (h *Hub) Deliver(msg notifications.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[msg.Room] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			h.removeLocked(c)
		}
		h.mu.Unlock()
		h.logger.Warn().Int("dropped", len(slow)).Str("room", msg.Room).Msg("dropped slow realtime clients")
	}
	return nil
}

// Publish implements notifications.Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, msg notifications.Message) error {
	return h.Deliver(msg)
}

// Package push delivers real-time events to websocket clients grouped in rooms.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrHubStopped is returned when publishing to a hub whose loop has exited.
var ErrHubStopped = errors.New("push hub stopped")

// Publisher emits an event to every client in a room. Delivery is at most once.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

// UserRoom is the room a user's clients join to receive their notifications.
func UserRoom(userID string) string {
	return "user-" + userID
}

// Envelope is the frame written to websocket clients.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

type Client struct {
	conn   *websocket.Conn
	Send   chan []byte
	Room   string
	UserID string
	closed bool
}

type broadcastMsg struct {
	Room string
	Data []byte
}

type joinRequest struct {
	client *Client
	room   string
}

// Hub owns the room membership. All mutations happen on the Run goroutine.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	broadcast  chan broadcastMsg
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *slog.Logger
}

var _ Publisher = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		broadcast:  make(chan broadcastMsg, 256),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is done or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	defer h.Stop()
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return

		case c := <-h.register:
			h.add(c, c.Room)

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.drop(c)
			h.mu.Unlock()

		case j := <-h.join:
			h.mu.Lock()
			h.remove(j.client)
			h.mu.Unlock()
			h.add(j.client, j.room)

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.Room] {
				select {
				case c.Send <- m.Data:
				default:
					// slow consumer
					h.remove(c)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	c.Room = room
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
}

// remove and drop expect h.mu to be held.
func (h *Hub) remove(c *Client) {
	if conns := h.rooms[c.Room]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, c.Room)
		}
	}
}

func (h *Hub) drop(c *Client) {
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for c := range conns {
			h.drop(c)
		}
		delete(h.rooms, room)
	}
}

// Stop ends the Run loop and closes every client send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// ClientCount returns the number of clients currently in room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish encodes the event envelope and queues it for the room.
func (h *Hub) Publish(ctx context.Context, room, event string, payload any) error {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	return h.Deliver(ctx, room, data)
}

// Deliver queues an already encoded frame for the room.
func (h *Hub) Deliver(ctx context.Context, room string, data []byte) error {
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: data}:
		return nil
	case <-h.stop:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds c to its room. It blocks until the Run loop accepts it.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stop:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

// Join moves c into room, leaving its previous room.
func (h *Hub) Join(c *Client, room string) {
	select {
	case h.join <- joinRequest{client: c, room: room}:
	case <-h.stop:
	}
}

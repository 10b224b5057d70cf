package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client represents a single client connection of a user.
// The websocket writer drains it; a user may hold several.
type Client chan []byte

// ClientBuffer is the capacity NewClient gives each connection.
const ClientBuffer = 32

// NewClient returns a buffered client channel.
func NewClient() Client {
	return make(Client, ClientBuffer)
}

// Hub fans events out to the open connections of each user.
type Hub struct {
	users map[uuid.UUID]map[Client]bool
	mu    sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		users: make(map[uuid.UUID]map[Client]bool),
	}
}

// Subscribe registers a connection for userID.
func (h *Hub) Subscribe(userID uuid.UUID, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[Client]bool)
	}
	h.users[userID][client] = true
}

// Unsubscribe removes a connection and closes its channel.
func (h *Hub) Unsubscribe(userID uuid.UUID, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.users[userID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Signals the writer to stop.
			if len(clients) == 0 {
				delete(h.users, userID)
			}
		}
	}
}

// Publish sends an event to every connection of userID.
// Delivery is best effort: a full client buffer drops the event for that client.
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.users[userID]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(event)
	if err != nil {
		return
	}

	for client := range clients {
		select {
		case client <- messageBytes:
		default:
		}
	}
}

// Online reports whether userID has at least one open connection.
func (h *Hub) Online(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

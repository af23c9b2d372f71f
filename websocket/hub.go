package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents one connected browser extension session
type Client struct {
	Hub    *Hub
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub manages all extension WebSocket connections. The dispatcher pushes
// reply_scheduled events here so connected extensions pick up due replies
// without waiting for their next poll.
type Hub struct {
	// Registered clients keyed by user id; a user may run the extension in
	// several browser profiles at once.
	Clients map[uint][]*Client

	Register   chan *Client
	Unregister chan *Client

	mu sync.RWMutex
}

// Message is the wire format pushed to extensions
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[uint][]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client.UserID] = append(h.Clients[client.UserID], client)
			h.mu.Unlock()
			log.Printf("🔌 Extension connected: user=%d", client.UserID)

		case client := <-h.Unregister:
			h.mu.Lock()
			clients := h.Clients[client.UserID]
			for i, c := range clients {
				if c == client {
					h.Clients[client.UserID] = append(clients[:i], clients[i+1:]...)
					close(client.Send)
					break
				}
			}
			if len(h.Clients[client.UserID]) == 0 {
				delete(h.Clients, client.UserID)
			}
			h.mu.Unlock()
			log.Printf("🔌 Extension disconnected: user=%d", client.UserID)
		}
	}
}

// SendToUser sends a message to every extension session of one user
func (h *Hub) SendToUser(userID uint, message *Message) {
	h.mu.RLock()
	clients := h.Clients[userID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Error marshaling message: %v", err)
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			log.Printf("⚠️ Extension send buffer full for user %d", userID)
		}
	}
}

// NotifyReplyScheduled implements the dispatcher's notifier contract: tells
// the user's extension sessions that a reply is waiting in the queue.
func (h *Hub) NotifyReplyScheduled(userID uint, replyID uint) {
	h.SendToUser(userID, &Message{
		Type:      "reply_scheduled",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"reply_id": replyID,
		},
	})
}

// IsUserConnected checks if a user has at least one extension session online
func (h *Hub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[userID]) > 0
}

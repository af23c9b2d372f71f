package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var extensionUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The extension connects from a chrome-extension:// origin
		return true
	},
}

// ExtensionHandler upgrades authenticated extension connections and wires
// them into the hub
type ExtensionHandler struct {
	hub *Hub
}

func NewExtensionHandler(hub *Hub) *ExtensionHandler {
	return &ExtensionHandler{hub: hub}
}

// HandleExtension handles GET /ws/extension
func (h *ExtensionHandler) HandleExtension(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := extensionUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Extension WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		Hub:    h.hub,
		UserID: userID.(uint),
		Conn:   conn,
		Send:   make(chan []byte, 16),
	}
	h.hub.Register <- client

	go client.writePump()
	client.readPump()
}

// readPump drains incoming messages; the extension only sends pings
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := c.Conn.ReadJSON(&msg); err != nil {
			return
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "ping" {
			pong := &Message{Type: "pong", Timestamp: time.Now()}
			c.Hub.SendToUser(c.UserID, pong)
		}
	}
}

// writePump pushes hub messages out on the connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

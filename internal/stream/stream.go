package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mycoool/imonitor/internal/types"
)

const writeWait = 5 * time.Second

// WebSocket connection manager for the live dashboard
type StreamManager struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	upgrader   websocket.Upgrader
}

// NewStreamManager creates an empty manager
func NewStreamManager() *StreamManager {
	return &StreamManager{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboard is read-only and public
			},
		},
	}
}

// add WebSocket connection
func (m *StreamManager) AddClient(conn *websocket.Conn) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()
	m.clients[conn] = true
}

// remove WebSocket connection
func (m *StreamManager) RemoveClient(conn *websocket.Conn) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()
	delete(m.clients, conn)
}

// Publish broadcasts data under msgType to every client
func (m *StreamManager) Publish(msgType string, data interface{}) {
	m.Broadcast(types.WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// broadcast message to all connected clients. Writes are serialized by the
// manager lock since a websocket connection allows a single writer.
func (m *StreamManager) Broadcast(message types.WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("stream: failed to encode %s message: %v", message.Type, err)
		return
	}

	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	for client := range m.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			// connection disconnected, drop client
			delete(m.clients, client)
			client.Close()
		}
	}
}

func (m *StreamManager) send(conn *websocket.Conn, message types.WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// get client count
func (m *StreamManager) ClientCount() int {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()
	return len(m.clients)
}

// HandleWebSocket upgrades the request and keeps the connection until the client leaves
func (m *StreamManager) HandleWebSocket(c *gin.Context) {
	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied with an HTTP error
		log.Printf("stream: websocket upgrade failed: %v", err)
		return
	}
	defer func() {
		m.RemoveClient(conn)
		conn.Close()
	}()

	m.AddClient(conn)
	log.Printf("WebSocket client connected, total clients: %d", m.ClientCount())

	if err := m.send(conn, types.WSMessage{
		Type:      "connected",
		Timestamp: time.Now(),
		Data:      map[string]string{"message": "WebSocket connected successfully"},
	}); err != nil {
		log.Printf("Error writing connected message: %v", err)
		return
	}

	// keep connection, answer heartbeats
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var clientMsg map[string]interface{}
		if json.Unmarshal(message, &clientMsg) == nil {
			if msgType, ok := clientMsg["type"].(string); ok && msgType == "ping" {
				if err := m.send(conn, types.WSMessage{
					Type:      "pong",
					Timestamp: time.Now(),
					Data:      map[string]string{"message": "pong"},
				}); err != nil {
					log.Printf("Error writing pong message: %v", err)
					return
				}
			}
		}
	}

	m.RemoveClient(conn)
	log.Printf("WebSocket client disconnected, remaining clients: %d", m.ClientCount())
}

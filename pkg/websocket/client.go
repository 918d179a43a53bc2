package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// Message is the envelope exchanged over the socket in both directions.
type Message struct {
	Type      string                 `json:"type"`
	RideID    string                 `json:"ride_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewMessage stamps a server originated message.
func NewMessage(msgType string, data map[string]interface{}) *Message {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Message{Type: msgType, Timestamp: time.Now().UTC(), Data: data}
}

// NewErrorMessage builds the "error" frame sent back to a misbehaving client.
func NewErrorMessage(message string) *Message {
	return NewMessage(TypeError, map[string]interface{}{"message": message})
}

// Client represents a WebSocket client connection
type Client struct {
	ID     string // user ID
	RideID string // ride room the client joined, if any
	Role   models.UserRole
	Conn   *websocket.Conn
	Send   chan *Message
	Hub    *Hub

	log *zap.Logger
	mu  sync.RWMutex
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, role models.UserRole, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan *Message, sendBufferSize),
		Hub:  hub,
		Role: role,
		log:  log.With(zap.String("user_id", id)),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		msg.Timestamp = time.Now().UTC()
		msg.UserID = c.ID

		c.Hub.HandleMessage(c, &msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues msg for the write pump. A slow consumer loses the
// message rather than stalling the hub.
func (c *Client) SendMessage(msg *Message) {
	select {
	case c.Send <- msg:
	default:
		c.log.Warn("client send buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// SetRide associates the client with a ride
func (c *Client) SetRide(rideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RideID = rideID
}

// GetRide returns the current ride ID
func (c *Client) GetRide() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RideID
}

// MarshalJSON renders the timestamp as RFC3339.
func (m *Message) MarshalJSON() ([]byte, error) {
	type Alias Message
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: m.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(m),
	})
}

// UnmarshalJSON accepts an RFC3339 timestamp or none at all.
func (m *Message) UnmarshalJSON(data []byte) error {
	type Alias Message
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return err
		}
		m.Timestamp = t
	}

	return nil
}

package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MessageHandler handles an inbound client message of a registered type.
type MessageHandler func(*Client, *Message)

// Broadcast targets.
const (
	TargetUser = "user"
	TargetRide = "ride"
	TargetAll  = "all"
)

// Hub maintains the set of active clients and their ride rooms.
type Hub struct {
	// Registered clients by user ID. A user holds at most one connection.
	clients map[string]*Client

	// Clients grouped by ride ID
	rides map[string]map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *BroadcastMessage

	handlers map[string]MessageHandler
	log      *zap.Logger

	mu sync.RWMutex
}

// BroadcastMessage represents a message to be fanned out by the hub.
type BroadcastMessage struct {
	Target   string // TargetUser, TargetRide or TargetAll
	TargetID string // user ID or ride ID
	Message  *Message
}

// NewHub creates a new Hub instance
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		rides:      make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *BroadcastMessage, 256),
		handlers:   make(map[string]MessageHandler),
		log:        log,
	}
}

// Run processes hub events until ctx is cancelled. All connected clients
// are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("websocket hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			h.log.Info("websocket hub stopped")
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case broadcast := <-h.Broadcast:
			h.broadcastMessage(broadcast)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A reconnect replaces the previous connection for the same user.
	if existing, ok := h.clients[client.ID]; ok && existing != client {
		h.detachLocked(existing)
		close(existing.Send)
	}

	h.clients[client.ID] = client
	h.log.Debug("client registered", zap.String("user_id", client.ID), zap.String("role", string(client.Role)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Stale pumps of a replaced connection must not evict its successor.
	if current, ok := h.clients[client.ID]; !ok || current != client {
		return
	}

	delete(h.clients, client.ID)
	h.detachLocked(client)
	close(client.Send)
	h.log.Debug("client unregistered", zap.String("user_id", client.ID))
}

// detachLocked removes client from its ride room. Caller holds h.mu.
func (h *Hub) detachLocked(client *Client) {
	rideID := client.GetRide()
	if rideID == "" {
		return
	}
	if room, ok := h.rides[rideID]; ok {
		if room[client.ID] == client {
			delete(room, client.ID)
		}
		if len(room) == 0 {
			delete(h.rides, rideID)
		}
	}
	client.SetRide("")
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.rides = make(map[string]map[string]*Client)
}

func (h *Hub) broadcastMessage(broadcast *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch broadcast.Target {
	case TargetUser:
		if client, ok := h.clients[broadcast.TargetID]; ok {
			client.SendMessage(broadcast.Message)
		}

	case TargetRide:
		for _, client := range h.rides[broadcast.TargetID] {
			client.SendMessage(broadcast.Message)
		}

	case TargetAll:
		for _, client := range h.clients {
			client.SendMessage(broadcast.Message)
		}

	default:
		h.log.Warn("unknown broadcast target", zap.String("target", broadcast.Target))
	}
}

// HandleMessage dispatches an inbound message to its registered handler.
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, ok := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !ok {
		client.SendMessage(NewErrorMessage("unknown message type: " + msg.Type))
		return
	}
	handler(client, msg)
}

// RegisterHandler binds handler to inbound messages of msgType.
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// AddClientToRide moves client into the room for rideID, leaving any
// previous room.
func (h *Hub) AddClientToRide(client *Client, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.GetRide() == rideID {
		return
	}
	h.detachLocked(client)

	room, ok := h.rides[rideID]
	if !ok {
		room = make(map[string]*Client)
		h.rides[rideID] = room
	}
	room[client.ID] = client
	client.SetRide(rideID)
}

// RemoveClientFromRide drops client from rideID's room if it is there.
func (h *Hub) RemoveClientFromRide(client *Client, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.GetRide() != rideID {
		return
	}
	h.detachLocked(client)
}

// SendToUser queues msg for the connected user, if any.
func (h *Hub) SendToUser(userID string, msg *Message) {
	h.enqueue(&BroadcastMessage{Target: TargetUser, TargetID: userID, Message: msg})
}

// SendToRide queues msg for every client in the ride room.
func (h *Hub) SendToRide(rideID string, msg *Message) {
	h.enqueue(&BroadcastMessage{Target: TargetRide, TargetID: rideID, Message: msg})
}

// SendToAll queues msg for every connected client.
func (h *Hub) SendToAll(msg *Message) {
	h.enqueue(&BroadcastMessage{Target: TargetAll, Message: msg})
}

func (h *Hub) enqueue(b *BroadcastMessage) {
	select {
	case h.Broadcast <- b:
	default:
		h.log.Warn("broadcast queue full, dropping message",
			zap.String("target", b.Target),
			zap.String("target_id", b.TargetID),
			zap.String("type", b.Message.Type),
		)
	}
}

// GetClient returns the connected client for userID.
func (h *Hub) GetClient(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	return client, ok
}

// IsOnline reports whether userID currently holds a connection.
func (h *Hub) IsOnline(userID string) bool {
	_, ok := h.GetClient(userID)
	return ok
}

// GetClientsInRide returns the clients currently in rideID's room.
func (h *Hub) GetClientsInRide(rideID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rides[rideID]
	clients := make([]*Client, 0, len(room))
	for _, client := range room {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetRideCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides)
}

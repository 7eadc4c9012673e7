package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Message types
const (
	MessageTypeEntryCreated     = "entry_created"
	MessageTypeEntryUpdated     = "entry_updated"
	MessageTypeEntryDeleted     = "entry_deleted"
	MessageTypeRebuildCompleted = "rebuild_completed"
	MessageTypeSubscribe        = "subscribe"
	MessageTypeUnsubscribe      = "unsubscribe"
	MessageTypePing             = "ping"
	MessageTypePong             = "pong"
	MessageTypeError            = "error"
)

// Message is a hub-to-client event. Venue scopes delivery to clients
// subscribed to that venue; an empty venue reaches every client.
type Message struct {
	Type      string      `json:"type"`
	Venue     string      `json:"venue,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans roster change events out to connected dashboard clients.
// Registration and venue subscriptions are handled directly under the
// mutex; only the outbound broadcast flows through the run loop, so
// publishing never blocks the caller.
type Hub struct {
	mu      sync.RWMutex
	venues  map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	broadcast chan *Message

	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		venues:    make(map[string]map[*Client]struct{}),
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan *Message, 256),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Run drains the broadcast channel until Stop is called.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client registered", "client_id", client.id)
}

// Unregister drops a client and every venue subscription it holds.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for venue, subs := range h.venues {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.venues, venue)
		}
	}
	close(client.send)
	h.logger.Debug("client unregistered", "client_id", client.id)
}

// Subscribe adds a client to a venue subscription
func (h *Hub) Subscribe(client *Client, venue string) {
	h.mu.Lock()
	if h.venues[venue] == nil {
		h.venues[venue] = make(map[*Client]struct{})
	}
	h.venues[venue][client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client subscribed", "client_id", client.id, "venue", venue)
}

// Unsubscribe removes a client from a venue subscription
func (h *Hub) Unsubscribe(client *Client, venue string) {
	h.mu.Lock()
	if subs, ok := h.venues[venue]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.venues, venue)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client unsubscribed", "client_id", client.id, "venue", venue)
}

// deliver pushes a message to its audience: the venue's subscribers,
// or every client when the message carries no venue.
func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.Venue != "" {
		for client := range h.venues[message.Venue] {
			if !client.enqueue(message) {
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
		return
	}
	for client := range h.clients {
		if !client.enqueue(message) {
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) publish(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Broadcast queues a roster change event scoped to a venue. An empty
// venue reaches every connected client.
func (h *Hub) Broadcast(messageType, venue string, data interface{}) {
	h.publish(&Message{
		Type:      messageType,
		Venue:     venue,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// GetSubscriberCount returns the number of subscribers for a venue
func (h *Hub) GetSubscriberCount(venue string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.venues[venue])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

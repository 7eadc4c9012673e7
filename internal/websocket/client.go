package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client is one dashboard connection. Outbound messages are queued on
// send and written by writePump; a full queue drops messages rather
// than blocking the hub.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan *Message
	logger *slog.Logger
}

// ClientMessage is the inbound frame a dashboard sends.
type ClientMessage struct {
	Type  string `json:"type"`
	Venue string `json:"venue,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan *Message, 256),
		logger: logger,
	}
}

// enqueue queues a message for delivery, reporting false when the
// client's buffer is full.
func (c *Client) enqueue(msg *Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) reply(msgType, venue string, data interface{}) {
	c.enqueue(&Message{
		Type:      msgType,
		Venue:     venue,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// readPump reads dashboard frames until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("invalid message format", "error", err)
			c.reply(MessageTypeError, "", map[string]string{"error": "invalid message format"})
			continue
		}

		switch msg.Type {
		case MessageTypeSubscribe:
			if msg.Venue == "" {
				c.reply(MessageTypeError, "", map[string]string{"error": "venue required for subscribe"})
				continue
			}
			c.hub.Subscribe(c, msg.Venue)
			c.reply("subscribed", msg.Venue, map[string]string{"status": "ok"})

		case MessageTypeUnsubscribe:
			if msg.Venue != "" {
				c.hub.Unsubscribe(c, msg.Venue)
				c.reply("unsubscribed", msg.Venue, map[string]string{"status": "ok"})
			}

		case MessageTypePing:
			c.reply(MessageTypePong, "", nil)

		default:
			c.logger.Debug("unknown message type", "type", msg.Type)
		}
	}
}

// writePump writes queued messages and keepalive pings until the send
// channel closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles WebSocket requests from peers
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "client_id", client.id)
}

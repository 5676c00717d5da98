package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/windoze95/voicepack-api/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxMessageBytes bounds a single inbound frame. Audio frames carry
	// base64 data, so this is far above a typed query.
	DefaultMaxMessageBytes = 8 << 20

	sendBuffer = 64
)

// Client represents a single WebSocket connection.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	RoomID string
	UserID *uint
}

// NewClient returns a client bound to hub with a buffered send queue.
func NewClient(hub *Hub, conn *websocket.Conn, roomID string, userID *uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		RoomID: roomID,
		UserID: userID,
	}
}

func (c *Client) logFields() []zap.Field {
	fields := []zap.Field{zap.String("room_id", c.RoomID)}
	if c.UserID != nil {
		fields = append(fields, zap.Uint("user_id", *c.UserID))
	}
	return fields
}

// Hub tracks voice sessions. Every signed-in user has one room so replies
// reach all of their open devices; anonymous sessions get a private room.
type Hub struct {
	Rooms           map[string]map[*Client]bool
	Unregister      chan *Client
	Broadcast       chan *RoomMessage
	MaxMessageBytes int64
	mu              sync.RWMutex
	done            chan struct{}
}

// RoomMessage carries a message destined for a specific room.
type RoomMessage struct {
	RoomID  string
	Message []byte
	Sender  *Client // skipped when set
}

// NewHub creates and returns a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:           make(map[string]map[*Client]bool),
		Unregister:      make(chan *Client),
		Broadcast:       make(chan *RoomMessage),
		MaxMessageBytes: DefaultMaxMessageBytes,
		done:            make(chan struct{}),
	}
}

// Run handles unregister and broadcast events until ctx is done.
// On shutdown every remaining client's queue is closed, which makes its
// WritePump send a close frame.
func (h *Hub) Run(ctx context.Context) {
	log := logger.Get()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for roomID, clients := range h.Rooms {
				for client := range clients {
					close(client.Send)
				}
				delete(h.Rooms, roomID)
			}
			h.mu.Unlock()
			return

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

			log.Info("voice session unregistered", client.logFields()...)

		case msg := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.Rooms[msg.RoomID] {
				if msg.Sender != nil && client == msg.Sender {
					continue
				}
				select {
				case client.Send <- msg.Message:
				default:
					// Slow consumer; drop the session.
					log.Warn("voice session send buffer full", client.logFields()...)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues msg for every session in its room. It never blocks once the
// hub has stopped.
func (h *Hub) Publish(msg *RoomMessage) {
	select {
	case h.Broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Join adds client to its room. It is synchronous so messages queued right
// after joining are never dropped.
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	if h.Rooms[client.RoomID] == nil {
		h.Rooms[client.RoomID] = make(map[*Client]bool)
	}
	h.Rooms[client.RoomID][client] = true
	h.mu.Unlock()

	logger.Get().Info("voice session registered", client.logFields()...)
}

// SendTo queues message for one client. It reports false when the client has
// left or its queue is full.
func (h *Hub) SendTo(client *Client, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.Rooms[client.RoomID][client] {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.Rooms[client.RoomID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.Rooms, client.RoomID)
	}
}

// ClientCount returns the number of open sessions in a room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Rooms[roomID])
}

// ReadPump reads messages from the WebSocket connection. It is intended to be
// run in a per-client goroutine. The provided handler is called for each
// incoming message, one at a time.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()

	limit := c.Hub.MaxMessageBytes
	if limit <= 0 {
		limit = DefaultMaxMessageBytes
	}
	c.Conn.SetReadLimit(limit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				logger.Get().Warn("unexpected websocket close", append(c.logFields(), zap.Error(err))...)
			}
			break
		}
		handler(c, message)
	}
}

// WritePump sends messages from the Send channel to the WebSocket connection.
// It also sends periodic pings to keep the connection alive. It is intended to
// be run in a per-client goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

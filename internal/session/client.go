package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rajanikanta17/Realtime-Code-Editor/internal/models"
)

// Client is one live connection's session: the socket plus the connection's
// current room and user identity. Room/user are mutated only by the
// manager, under the owning room's lock.
type Client struct {
	ID   string
	Conn *websocket.Conn

	currentRoom string
	currentUser string

	mu   sync.Mutex
	hook func(models.WSFrame)
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.New().String(), Conn: conn}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send delivers one frame to this connection. Writes are serialized per
// connection, so frames sent in order arrive in order.
func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(frame)
}

// Room returns the room this connection is currently joined to, or "".
func (c *Client) Room() string { return c.currentRoom }

// User returns the user name this connection joined as, or "".
func (c *Client) User() string { return c.currentUser }

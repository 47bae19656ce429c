package websocket

import (
	"sync"
	"time"

	"chatflow/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one websocket connection. The hub owns its routing state; the
// client owns its socket, outbound queue and typing state.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	id     string
	userID string

	mu         sync.Mutex
	username   string
	setup      bool
	typingRoom string // room of the current typing burst, "" when idle

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, user *models.User) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, hub.cfg.SendBuffer),
		done:     make(chan struct{}),
		id:       uuid.NewString(),
		userID:   user.ID,
		username: user.Username,
	}
	return c
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Client) setUsername(name string) {
	c.mu.Lock()
	c.username = name
	c.mu.Unlock()
}

// markSetup reports whether this is the first setup on the connection.
func (c *Client) markSetup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	first := !c.setup
	c.setup = true
	return first
}

func (c *Client) isSetup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setup
}

// enqueue is a non-blocking push onto the outbound queue. Frames are dropped
// when the queue is full or the client is closed.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.hub.log.Warn("Dropping frame for slow client", "conn_id", c.id, "user_id", c.userID)
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// startTyping marks a burst in channelID. The sender debounces keystrokes,
// so the burst lasts until its "stop typing" arrives. It returns the room of
// a burst this one replaces and whether peers need a "typing" event.
func (c *Client) startTyping(channelID string) (prev string, started bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.typingRoom == channelID {
		return "", false
	}
	prev = c.typingRoom
	c.typingRoom = channelID
	return prev, true
}

// stopTyping ends the current burst and returns its room.
func (c *Client) stopTyping() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.typingRoom
	c.typingRoom = ""
	return room
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket error", "conn_id", c.id, "error", err)
			}
			break
		}
		c.hub.Dispatch(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug("Write error", "conn_id", c.id, "error", err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

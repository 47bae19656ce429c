// Package chatclient is a Go client for the chat server: a websocket
// session, a REST API wrapper, and the client-side state (timelines and
// typing) that browser clients otherwise keep by hand.
package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"chatflow/internal/models"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Emitter sends one real-time event.
type Emitter interface {
	Emit(event string, data any) error
}

// Client is one websocket session. Inbound events are delivered on Events
// until the connection closes.
type Client struct {
	conn   *websocket.Conn
	events chan models.Envelope

	writeMu   sync.Mutex
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	err       error
}

// Dial connects to baseURL (ws:// or wss://) and authenticates with token.
func Dial(ctx context.Context, baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan models.Envelope, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Setup announces the session; the server answers with "connected".
func (c *Client) Setup(userID string) error {
	return c.Emit(models.EventSetup, models.UserSummary{ID: userID})
}

func (c *Client) JoinChat(channelID string) error {
	return c.Emit(models.EventJoinChat, channelID)
}

func (c *Client) Emit(event string, data any) error {
	frame, err := models.NewEnvelope(event, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Events() <-chan models.Envelope {
	return c.events
}

// Done is closed once the read loop has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		var env models.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}
		select {
		case c.events <- env:
		case <-c.stop:
			return
		}
	}
}

// Err returns the error that ended the read loop, once Done is closed.
func (c *Client) Err() error {
	<-c.done
	if websocket.IsCloseError(c.err, websocket.CloseNormalClosure) {
		return nil
	}
	return c.err
}


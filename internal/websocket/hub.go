package websocket

import (
	"encoding/json"
	"sync"

	"chatflow/internal/config"
	"chatflow/internal/models"
	"chatflow/pkg/logger"

	"github.com/gorilla/websocket"
)

// Hub is the event dispatcher. It holds every live connection together with
// the presence registry and the room multiplexer, and routes inbound events
// to the right audience. Events are fan-out only; nothing is persisted here.
type Hub struct {
	cfg      config.RealtimeConfig
	log      logger.Logger
	presence *Presence
	rooms    *Rooms

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

func NewHub(cfg config.RealtimeConfig, log logger.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		log:      log,
		presence: NewPresence(),
		rooms:    NewRooms(),
		clients:  make(map[string]*Client),
	}
}

func (h *Hub) Presence() *Presence { return h.presence }
func (h *Hub) Rooms() *Rooms       { return h.rooms }

// Connect registers a new connection for an authenticated user. The caller
// runs the pumps.
func (h *Hub) Connect(conn *websocket.Conn, user *models.User) *Client {
	c := newClient(h, conn, user)
	h.register(c)
	return c
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.close()
		return
	}
	h.clients[c.id] = c
	h.log.Debug("Connection opened", "conn_id", c.id, "user_id", c.userID)
}

// Unregister releases everything held for c. It is safe to call more than
// once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.close()
	if room := c.stopTyping(); room != "" {
		h.broadcastRoom(room, models.EventStopTyping, nil, c.id)
	}
	h.rooms.LeaveAll(c.id)

	if userID, ok := h.presence.Unregister(c.id); ok {
		h.log.Info("User connection closed", "user_id", userID, "conn_id", c.id, "still_online", h.presence.IsOnline(userID))
		h.broadcastPresence()
	}
}

// Dispatch handles one inbound frame from c. Malformed frames and unknown
// events are logged and dropped; the sender never gets an error back.
func (h *Hub) Dispatch(c *Client, frame []byte) {
	var env models.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		h.log.Debug("Dropping malformed frame", "conn_id", c.id, "error", err)
		return
	}

	if env.Event == models.EventSetup {
		h.setup(c)
		return
	}
	if !c.isSetup() {
		h.log.Debug("Dropping event before setup", "conn_id", c.id, "event", env.Event)
		return
	}

	switch env.Event {
	case models.EventJoinChat:
		var channelID string
		if !h.decode(c, env, &channelID) || channelID == "" {
			return
		}
		if prev := h.rooms.Join(c, channelID); prev != "" {
			h.log.Debug("Switched room", "conn_id", c.id, "from", prev, "to", channelID)
		}

	case models.EventNewMessage, models.EventUpdateMessage:
		var msg models.MessageEvent
		if !h.decode(c, env, &msg) || msg.ChannelID == "" {
			return
		}
		out := models.EventMessageRecv
		if env.Event == models.EventUpdateMessage {
			out = models.EventMessageUpdate
		}
		h.broadcastRoom(msg.ChannelID, out, env.Data, c.id)

	case models.EventDeleteMessage:
		var ev models.DeleteMessageEvent
		if !h.decode(c, env, &ev) || ev.ChannelID == "" || ev.MessageID == "" {
			return
		}
		h.broadcastRoom(ev.ChannelID, models.EventMessageDelete, ev.MessageID, c.id)

	case models.EventTyping:
		var channelID string
		if !h.decode(c, env, &channelID) || channelID == "" {
			return
		}
		prev, started := c.startTyping(channelID)
		if prev != "" {
			h.broadcastRoom(prev, models.EventStopTyping, nil, c.id)
		}
		if started {
			h.broadcastRoom(channelID, models.EventTyping, c.Username(), c.id)
		}

	case models.EventStopTyping:
		var channelID string
		if !h.decode(c, env, &channelID) || channelID == "" {
			return
		}
		c.stopTyping()
		h.broadcastRoom(channelID, models.EventStopTyping, nil, c.id)

	case models.EventDeleteChannel:
		var channelID string
		if !h.decode(c, env, &channelID) || channelID == "" {
			return
		}
		h.broadcastAll(models.EventChannelDelete, channelID)

	case models.EventUserUpdated:
		var ev models.UserUpdatedEvent
		if !h.decode(c, env, &ev) || ev.NewUsername == "" {
			return
		}
		if ev.ID != c.userID {
			h.log.Warn("Ignoring user update for another user", "conn_id", c.id, "user_id", c.userID, "target_id", ev.ID)
			return
		}
		h.renameUser(ev.ID, ev.NewUsername)
		h.broadcastAll(models.EventUserUpdated, ev)

	default:
		h.log.Debug("Dropping unknown event", "conn_id", c.id, "event", env.Event)
	}
}

// setup registers c with presence. Repeated setups are acknowledged again but
// do not change presence.
func (h *Hub) setup(c *Client) {
	first := c.markSetup()
	if first {
		// Shutdown may have unregistered c while this frame was in flight.
		h.mu.Lock()
		_, live := h.clients[c.id]
		if live {
			h.presence.Register(c.userID, c.id)
		}
		h.mu.Unlock()
		if !live {
			return
		}
		h.log.Info("User connected", "user_id", c.userID, "conn_id", c.id, "connections", h.presence.Connections(c.userID))
	}
	h.send(c, models.EventConnected, nil)
	if first {
		h.broadcastPresence()
	}
}

func (h *Hub) decode(c *Client, env models.Envelope, v any) bool {
	if len(env.Data) == 0 {
		h.log.Debug("Dropping event without payload", "conn_id", c.id, "event", env.Event)
		return false
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		h.log.Debug("Dropping malformed payload", "conn_id", c.id, "event", env.Event, "error", err)
		return false
	}
	return true
}

func (h *Hub) renameUser(userID, username string) {
	for _, c := range h.snapshot() {
		if c.userID == userID {
			c.setUsername(username)
		}
	}
}

func (h *Hub) send(c *Client, event string, data any) {
	frame, err := models.NewEnvelope(event, data)
	if err != nil {
		h.log.Error("Error marshaling event", "event", event, "error", err)
		return
	}
	c.enqueue(frame)
}

func (h *Hub) broadcastRoom(channelID, event string, data any, excludeConnID string) {
	if channelID == "" {
		return
	}
	frame, err := h.frame(event, data)
	if err != nil {
		h.log.Error("Error marshaling event", "event", event, "error", err)
		return
	}
	h.rooms.Broadcast(channelID, frame, excludeConnID)
}

func (h *Hub) broadcastAll(event string, data any) {
	frame, err := h.frame(event, data)
	if err != nil {
		h.log.Error("Error marshaling event", "event", event, "error", err)
		return
	}
	for _, c := range h.snapshot() {
		c.enqueue(frame)
	}
}

// broadcastPresence sends the full online snapshot to every connection.
func (h *Hub) broadcastPresence() {
	h.broadcastAll(models.EventOnlineUsers, h.presence.Snapshot())
}

// frame passes already-encoded payloads through untouched.
func (h *Hub) frame(event string, data any) ([]byte, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return json.Marshal(models.Envelope{Event: event, Data: raw})
	}
	return models.NewEnvelope(event, data)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection. New connections are refused afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
	}
	h.log.Info("Hub shut down", "connections", len(clients))
}

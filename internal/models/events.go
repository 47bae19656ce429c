package models

import "encoding/json"

// Real-time event names. They are part of the wire protocol and match the
// names browser clients already emit and listen for.
const (
	EventSetup         = "setup"
	EventConnected     = "connected"
	EventOnlineUsers   = "online users"
	EventJoinChat      = "join chat"
	EventNewMessage    = "new message"
	EventMessageRecv   = "message received"
	EventTyping        = "typing"
	EventStopTyping    = "stop typing"
	EventUpdateMessage = "update message"
	EventMessageUpdate = "message updated"
	EventDeleteMessage = "delete message"
	EventMessageDelete = "message deleted"
	EventDeleteChannel = "delete channel"
	EventChannelDelete = "channel deleted"
	EventUserUpdated   = "user updated"
)

// Envelope is one websocket frame in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type DeleteMessageEvent struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

type UserUpdatedEvent struct {
	ID          string `json:"id"`
	NewUsername string `json:"newUsername"`
}

// MessageEvent is the minimum the server needs from a relayed message; the
// rest of the payload is forwarded untouched.
type MessageEvent struct {
	ID        string `json:"_id"`
	ChannelID string `json:"channelId"`
}

func NewEnvelope(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

package websocket

import "sync"

// Rooms maps channels to the connections currently viewing them. A
// connection is in at most one room at a time.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]*Client // channelID -> connID -> client
	active  map[string]string             // connID -> channelID
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]*Client),
		active:  make(map[string]string),
	}
}

// Join moves c into channelID, leaving its previous room first. It returns
// the room that was left, if any.
func (r *Rooms) Join(c *Client, channelID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.active[c.id]
	if prev == channelID {
		return ""
	}
	if prev != "" {
		r.remove(c.id, prev)
	}

	room, ok := r.members[channelID]
	if !ok {
		room = make(map[string]*Client)
		r.members[channelID] = room
	}
	room[c.id] = c
	r.active[c.id] = channelID
	return prev
}

// Leave removes connID from channelID. Leaving a room the connection is not
// in is a no-op.
func (r *Rooms) Leave(connID, channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[connID] != channelID {
		return false
	}
	r.remove(connID, channelID)
	return true
}

// LeaveAll removes connID from whatever room it is in.
func (r *Rooms) LeaveAll(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelID, ok := r.active[connID]
	if !ok {
		return "", false
	}
	r.remove(connID, channelID)
	return channelID, true
}

// Room returns the active room of connID.
func (r *Rooms) Room(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[connID]
}

// Recipients returns a copy of the clients in channelID, minus excludeConnID.
func (r *Rooms) Recipients(channelID, excludeConnID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.members[channelID]
	out := make([]*Client, 0, len(room))
	for connID, c := range room {
		if connID != excludeConnID {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast delivers frame to everyone in channelID except excludeConnID and
// returns how many queues accepted it. Delivery happens after the lock is
// released so a slow client cannot stall the room.
func (r *Rooms) Broadcast(channelID string, frame []byte, excludeConnID string) int {
	delivered := 0
	for _, c := range r.Recipients(channelID, excludeConnID) {
		if c.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

func (r *Rooms) remove(connID, channelID string) {
	delete(r.active, connID)
	if room := r.members[channelID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.members, channelID)
		}
	}
}

package websocket

import (
	"sort"
	"sync"
)

// Presence tracks which users have at least one live connection. A user
// stays online until their last connection unregisters.
type Presence struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{} // userID -> connIDs
	owner map[string]string              // connID -> userID
}

func NewPresence() *Presence {
	return &Presence{
		conns: make(map[string]map[string]struct{}),
		owner: make(map[string]string),
	}
}

// Register records connID for userID. It returns false if the connection was
// already registered.
func (p *Presence) Register(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.owner[connID]; ok {
		return false
	}
	set, ok := p.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		p.conns[userID] = set
	}
	set[connID] = struct{}{}
	p.owner[connID] = userID
	return true
}

// Unregister forgets connID and returns the user it belonged to.
func (p *Presence) Unregister(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.owner[connID]
	if !ok {
		return "", false
	}
	delete(p.owner, connID)
	if set := p.conns[userID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(p.conns, userID)
		}
	}
	return userID, true
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// Connections returns how many live connections userID has.
func (p *Presence) Connections(userID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID])
}

// Snapshot returns the online user ids in sorted order.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	users := make([]string, 0, len(p.conns))
	for userID := range p.conns {
		users = append(users, userID)
	}
	p.mu.RUnlock()

	sort.Strings(users)
	return users
}

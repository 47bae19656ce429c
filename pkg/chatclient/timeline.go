package chatclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"chatflow/internal/models"
)

// Timeline is the ordered message list of one channel as a client sees it.
// Messages are keyed by id, so the REST response to a send and the socket
// copy of the same message collapse into one entry.
type Timeline struct {
	mu        sync.RWMutex
	channelID string
	messages  []*models.Message
	byID      map[string]*models.Message
	isDeleted bool
	oldest    int // highest history page loaded
}

func NewTimeline(channelID string) *Timeline {
	return &Timeline{
		channelID: channelID,
		byID:      make(map[string]*models.Message),
	}
}

func (t *Timeline) ChannelID() string { return t.channelID }

// LoadPage merges a fetched history page.
func (t *Timeline) LoadPage(page *models.MessagePage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range page.Messages {
		t.put(m, true)
	}
	t.isDeleted = page.IsDeleted
	if page.Page > t.oldest {
		t.oldest = page.Page
	}
	t.sort()
}

// NextPage is the history page to request when scrolling back.
func (t *Timeline) NextPage() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.oldest + 1
}

// LocalEcho inserts the server's response to our own send. It always wins
// over a socket copy that arrived first.
func (t *Timeline) LocalEcho(m *models.Message) bool {
	if m.ChannelID != t.channelID {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	inserted := t.put(m, true)
	t.sort()
	return inserted
}

// Upsert inserts a message relayed by a peer. Duplicates are ignored; it
// reports whether the timeline changed.
func (t *Timeline) Upsert(m *models.Message) bool {
	if m.ChannelID != t.channelID {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.put(m, false) {
		return false
	}
	t.sort()
	return true
}

// ApplyUpdate replaces the content of a known message.
func (t *Timeline) ApplyUpdate(m *models.Message) bool {
	if m.ChannelID != t.channelID {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.byID[m.ID]
	if !ok {
		return false
	}
	cur.Content = m.Content
	cur.EditedAt = m.EditedAt
	cur.UpdatedAt = m.UpdatedAt
	cur.IsDeletedForAll = m.IsDeletedForAll
	return true
}

// ApplyDelete marks a message as deleted for everyone.
func (t *Timeline) ApplyDelete(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.byID[messageID]
	if !ok {
		return false
	}
	cur.Content = models.DeletedMessageNotice
	cur.IsDeletedForAll = true
	return true
}

// Hide drops a message the local user deleted for themselves.
func (t *Timeline) Hide(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byID[messageID]; !ok {
		return false
	}
	delete(t.byID, messageID)
	out := t.messages[:0]
	for _, m := range t.messages {
		if m.ID != messageID {
			out = append(out, m)
		}
	}
	t.messages = out
	return true
}

// RenameUser rewrites the cached sender name and returns how many messages
// changed.
func (t *Timeline) RenameUser(userID, username string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, m := range t.messages {
		if m.Sender.ID == userID && m.Sender.Username != username {
			m.Sender.Username = username
			n++
		}
	}
	return n
}

func (t *Timeline) MarkChannelDeleted() {
	t.mu.Lock()
	t.isDeleted = true
	t.mu.Unlock()
}

// IsDeleted reports whether the channel is read-only.
func (t *Timeline) IsDeleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isDeleted
}

// Messages returns a copy of the timeline, oldest first.
func (t *Timeline) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Message, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, *m)
	}
	return out
}

// Apply folds one inbound socket event into the timeline. Events for other
// channels and unrelated event types are ignored.
func (t *Timeline) Apply(env models.Envelope) error {
	switch env.Event {
	case models.EventMessageRecv, models.EventMessageUpdate:
		var m models.Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if env.Event == models.EventMessageRecv {
			t.Upsert(&m)
		} else {
			t.ApplyUpdate(&m)
		}

	case models.EventMessageDelete:
		var messageID string
		if err := json.Unmarshal(env.Data, &messageID); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		t.ApplyDelete(messageID)

	case models.EventChannelDelete:
		var channelID string
		if err := json.Unmarshal(env.Data, &channelID); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if channelID == t.channelID {
			t.MarkChannelDeleted()
		}

	case models.EventUserUpdated:
		var ev models.UserUpdatedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		t.RenameUser(ev.ID, ev.NewUsername)
	}
	return nil
}

// put stores m and reports whether it was new. With replace set an existing
// entry is overwritten in place.
func (t *Timeline) put(m *models.Message, replace bool) bool {
	if cur, ok := t.byID[m.ID]; ok {
		if replace {
			*cur = *m
		}
		return false
	}
	cp := *m
	t.byID[m.ID] = &cp
	t.messages = append(t.messages, &cp)
	return true
}

func (t *Timeline) sort() {
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
}

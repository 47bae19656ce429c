package database

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
)

// MemoryDB keeps everything in process. It backs DB_DRIVER=memory and the
// service tests.
type MemoryDB struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	channels map[string]*models.Channel
	messages map[string]*models.Message
	// insertion order of messages, oldest first
	order []string
	now   func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:    make(map[string]*models.User),
		channels: make(map[string]*models.Channel),
		messages: make(map[string]*models.Message),
		now:      time.Now,
	}
}

func (db *MemoryDB) Close() error { return nil }

func cloneUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func cloneChannel(c *models.Channel) *models.Channel {
	cp := *c
	cp.Members = slices.Clone(c.Members)
	return &cp
}

func (db *MemoryDB) cloneMessage(m *models.Message) *models.Message {
	cp := *m
	cp.DeletedFor = slices.Clone(m.DeletedFor)
	if m.EditedAt != nil {
		t := *m.EditedAt
		cp.EditedAt = &t
	}
	if u, ok := db.users[m.SenderID]; ok {
		cp.Sender = u.Summary()
	}
	return &cp
}

// User Repository Implementation
func (db *MemoryDB) CreateUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
		}
	}
	now := db.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	db.users[user.ID] = cloneUser(user)
	return nil
}

func (db *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
}

func (db *MemoryDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (db *MemoryDB) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (db *MemoryDB) UpdateUsername(ctx context.Context, id, username string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
	}
	u.Username = username
	u.UpdatedAt = db.now()
	return cloneUser(u), nil
}

func (db *MemoryDB) SearchUsers(ctx context.Context, keyword, excludeID string, limit int) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	needle := strings.ToLower(keyword)
	var users []*models.User
	for _, u := range db.users {
		if u.ID == excludeID {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(u.Username), needle) || strings.Contains(strings.ToLower(u.Email), needle) {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// Channel Repository Implementation
func (db *MemoryDB) CreateChannel(ctx context.Context, channel *models.Channel) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	channel.CreatedAt = now
	channel.UpdatedAt = now
	db.channels[channel.ID] = cloneChannel(channel)
	return nil
}

func (db *MemoryDB) GetChannelByID(ctx context.Context, id string) (*models.Channel, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: channel", apperrors.ErrNotFound)
	}
	return cloneChannel(c), nil
}

func (db *MemoryDB) ListChannelsForMember(ctx context.Context, userID string) ([]*models.Channel, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var channels []*models.Channel
	for _, c := range db.channels {
		if c.HasMember(userID) {
			channels = append(channels, cloneChannel(c))
		}
	}
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].UpdatedAt.After(channels[j].UpdatedAt)
	})
	return channels, nil
}

func (db *MemoryDB) AddMember(ctx context.Context, channelID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: channel", apperrors.ErrNotFound)
	}
	if !c.HasMember(userID) {
		c.Members = append(c.Members, userID)
		c.UpdatedAt = db.now()
	}
	return nil
}

func (db *MemoryDB) RemoveMember(ctx context.Context, channelID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: channel", apperrors.ErrNotFound)
	}
	if i := slices.Index(c.Members, userID); i >= 0 {
		c.Members = slices.Delete(c.Members, i, i+1)
		c.UpdatedAt = db.now()
	}
	return nil
}

func (db *MemoryDB) MarkChannelDeleted(ctx context.Context, channelID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: channel", apperrors.ErrNotFound)
	}
	if !c.IsDeleted {
		c.IsDeleted = true
		c.UpdatedAt = db.now()
	}
	return nil
}

// Message Repository Implementation
func (db *MemoryDB) CreateMessage(ctx context.Context, message *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	message.CreatedAt = now
	message.UpdatedAt = now
	stored := *message
	stored.DeletedFor = slices.Clone(message.DeletedFor)
	db.messages[message.ID] = &stored
	db.order = append(db.order, message.ID)

	if c, ok := db.channels[message.ChannelID]; ok {
		c.UpdatedAt = now
	}
	if u, ok := db.users[message.SenderID]; ok {
		message.Sender = u.Summary()
	}
	if message.DeletedFor == nil {
		message.DeletedFor = []string{}
	}
	return nil
}

func (db *MemoryDB) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message", apperrors.ErrNotFound)
	}
	return db.cloneMessage(m), nil
}

func (db *MemoryDB) ListChannelMessages(ctx context.Context, channelID, viewerID string, offset, limit int) ([]*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var messages []*models.Message
	skipped := 0
	for i := len(db.order) - 1; i >= 0 && len(messages) < limit; i-- {
		m := db.messages[db.order[i]]
		if m.ChannelID != channelID || !m.VisibleTo(viewerID) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		messages = append(messages, db.cloneMessage(m))
	}
	return messages, nil
}

func (db *MemoryDB) UpdateMessageContent(ctx context.Context, id, content string) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, ok := db.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message", apperrors.ErrNotFound)
	}
	now := db.now()
	m.Content = content
	m.UpdatedAt = now
	m.EditedAt = &now
	return db.cloneMessage(m), nil
}

func (db *MemoryDB) MarkDeletedForAll(ctx context.Context, id, notice string) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, ok := db.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message", apperrors.ErrNotFound)
	}
	m.Content = notice
	m.IsDeletedForAll = true
	m.UpdatedAt = db.now()
	return db.cloneMessage(m), nil
}

func (db *MemoryDB) AddDeletedFor(ctx context.Context, id, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, ok := db.messages[id]
	if !ok {
		return fmt.Errorf("%w: message", apperrors.ErrNotFound)
	}
	if !slices.Contains(m.DeletedFor, userID) {
		m.DeletedFor = append(m.DeletedFor, userID)
	}
	return nil
}

func (db *MemoryDB) SearchMessages(ctx context.Context, channelIDs []string, viewerID, keyword string, limit int) ([]*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	needle := strings.ToLower(keyword)
	var messages []*models.Message
	for i := len(db.order) - 1; i >= 0 && len(messages) < limit; i-- {
		m := db.messages[db.order[i]]
		if !slices.Contains(channelIDs, m.ChannelID) || m.IsDeletedForAll || !m.VisibleTo(viewerID) {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), needle) {
			messages = append(messages, db.cloneMessage(m))
		}
	}
	return messages, nil
}

package database

import (
	"context"

	"chatflow/internal/models"
)

// Implementations return errors wrapping pkg/errors.ErrNotFound when a
// lookup by id matches nothing, and ErrConflict on a duplicate e-mail.

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	UpdateUsername(ctx context.Context, id, username string) (*models.User, error)
	// SearchUsers matches keyword case-insensitively against username and
	// e-mail, excluding excludeID.
	SearchUsers(ctx context.Context, keyword, excludeID string, limit int) ([]*models.User, error)
}

type ChannelRepository interface {
	CreateChannel(ctx context.Context, channel *models.Channel) error
	GetChannelByID(ctx context.Context, id string) (*models.Channel, error)
	// ListChannelsForMember returns the channels userID belongs to, most
	// recently updated first.
	ListChannelsForMember(ctx context.Context, userID string) ([]*models.Channel, error)
	// AddMember and RemoveMember are idempotent set operations.
	AddMember(ctx context.Context, channelID, userID string) error
	RemoveMember(ctx context.Context, channelID, userID string) error
	MarkChannelDeleted(ctx context.Context, channelID string) error
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	// ListChannelMessages returns messages newest first, skipping those
	// viewerID deleted for themselves.
	ListChannelMessages(ctx context.Context, channelID, viewerID string, offset, limit int) ([]*models.Message, error)
	UpdateMessageContent(ctx context.Context, id, content string) (*models.Message, error)
	MarkDeletedForAll(ctx context.Context, id, notice string) (*models.Message, error)
	AddDeletedFor(ctx context.Context, id, userID string) error
	// SearchMessages returns messages in channelIDs whose content contains
	// keyword (case-insensitive, literal), newest first, excluding messages
	// deleted for everyone or for viewerID.
	SearchMessages(ctx context.Context, channelIDs []string, viewerID, keyword string, limit int) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	ChannelRepository
	MessageRepository
	Close() error
}

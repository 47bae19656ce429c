package services

import (
	"context"
	"fmt"
	"strings"

	"chatflow/internal/database"
	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type ChannelService struct {
	db  database.Database
	log logger.Logger
}

func NewChannelService(db database.Database, log logger.Logger) *ChannelService {
	return &ChannelService{db: db, log: log}
}

// CreateChannel makes the caller admin and sole member of a new channel.
func (s *ChannelService) CreateChannel(ctx context.Context, userID string, req *models.CreateChannelRequest) (*models.Channel, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: channel name is required", apperrors.ErrValidation)
	}
	if req.IsPrivate && req.Password == "" {
		return nil, fmt.Errorf("%w: private channels require a password", apperrors.ErrValidation)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = models.DefaultChannelDescription
	}

	channel := &models.Channel{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		IsPrivate:   req.IsPrivate,
		AdminID:     userID,
		Members:     []string{userID},
	}
	if req.IsPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash channel password: %w", err)
		}
		channel.PasswordHash = string(hash)
	}

	if err := s.db.CreateChannel(ctx, channel); err != nil {
		return nil, err
	}
	s.log.Info("Channel created", "channel_id", channel.ID, "admin_id", userID, "private", channel.IsPrivate)
	return channel, nil
}

func (s *ChannelService) ListChannels(ctx context.Context, userID string) ([]*models.Channel, error) {
	channels, err := s.db.ListChannelsForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []*models.Channel{}
	}
	return channels, nil
}

// JoinChannel adds the caller to the channel. Re-joining is a no-op and a
// failed password check leaves membership unchanged.
func (s *ChannelService) JoinChannel(ctx context.Context, userID string, req *models.JoinChannelRequest) (*models.Channel, error) {
	if req.ChannelID == "" {
		return nil, fmt.Errorf("%w: channelId is required", apperrors.ErrValidation)
	}

	channel, err := s.db.GetChannelByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.IsDeleted {
		return nil, fmt.Errorf("%w: channel has been deleted", apperrors.ErrInvalidState)
	}
	if channel.HasMember(userID) {
		return channel, nil
	}
	if channel.IsPrivate {
		if err := bcrypt.CompareHashAndPassword([]byte(channel.PasswordHash), []byte(req.Password)); err != nil {
			return nil, fmt.Errorf("%w: incorrect channel password", apperrors.ErrUnauthorized)
		}
	}

	if err := s.db.AddMember(ctx, channel.ID, userID); err != nil {
		return nil, err
	}
	return s.db.GetChannelByID(ctx, channel.ID)
}

// LeaveChannel removes the caller. The admin may only leave once they are
// the last member, so a channel never ends up with members and no admin.
func (s *ChannelService) LeaveChannel(ctx context.Context, userID string, req *models.LeaveChannelRequest) (*models.Channel, error) {
	if req.ChannelID == "" {
		return nil, fmt.Errorf("%w: channelId is required", apperrors.ErrValidation)
	}

	channel, err := s.db.GetChannelByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if !channel.HasMember(userID) {
		return channel, nil
	}
	if channel.AdminID == userID && len(channel.Members) > 1 {
		return nil, fmt.Errorf("%w: the admin cannot leave while other members remain", apperrors.ErrInvalidState)
	}

	if err := s.db.RemoveMember(ctx, channel.ID, userID); err != nil {
		return nil, err
	}
	return s.db.GetChannelByID(ctx, channel.ID)
}

// DeleteChannel soft-deletes the channel. Only the admin may do it; deleting
// an already deleted channel succeeds.
func (s *ChannelService) DeleteChannel(ctx context.Context, userID, channelID string) (*models.Channel, error) {
	channel, err := s.db.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.AdminID != userID {
		return nil, fmt.Errorf("%w: only the channel admin can delete it", apperrors.ErrUnauthorized)
	}
	if !channel.IsDeleted {
		if err := s.db.MarkChannelDeleted(ctx, channelID); err != nil {
			return nil, err
		}
		s.log.Info("Channel deleted", "channel_id", channelID, "admin_id", userID)
	}
	return s.db.GetChannelByID(ctx, channelID)
}

// ChannelMembers returns member summaries. Private channels are only
// visible to their members.
func (s *ChannelService) ChannelMembers(ctx context.Context, userID, channelID string) ([]models.UserSummary, error) {
	channel, err := s.db.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.IsPrivate && !channel.HasMember(userID) {
		return nil, fmt.Errorf("%w: not a member of this channel", apperrors.ErrUnauthorized)
	}

	users, err := s.db.GetUsersByIDs(ctx, channel.Members)
	if err != nil {
		return nil, err
	}
	members := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		members = append(members, u.Summary())
	}
	return members, nil
}

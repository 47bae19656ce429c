package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"chatflow/internal/database"
	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/google/uuid"
)

type MessageService struct {
	db  database.Database
	log logger.Logger
}

func NewMessageService(db database.Database, log logger.Logger) *MessageService {
	return &MessageService{db: db, log: log}
}

func (s *MessageService) SendMessage(ctx context.Context, userID string, req *models.SendMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if req.ChannelID == "" || content == "" {
		return nil, fmt.Errorf("%w: channelId and content are required", apperrors.ErrValidation)
	}

	channel, err := s.db.GetChannelByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.IsDeleted {
		return nil, fmt.Errorf("%w: channel has been deleted", apperrors.ErrInvalidState)
	}
	if !channel.HasMember(userID) {
		return nil, fmt.Errorf("%w: not a member of this channel", apperrors.ErrUnauthorized)
	}

	message := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   userID,
		ChannelID:  channel.ID,
		Content:    content,
		DeletedFor: []string{},
	}
	if err := s.db.CreateMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// FetchMessages returns one page of history in chronological order. Page 1
// holds the newest MessagePageSize messages.
func (s *MessageService) FetchMessages(ctx context.Context, userID, channelID string, page int) (*models.MessagePage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", apperrors.ErrValidation)
	}

	channel, err := s.db.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.IsPrivate && !channel.HasMember(userID) {
		return nil, fmt.Errorf("%w: not a member of this channel", apperrors.ErrUnauthorized)
	}

	messages, err := s.db.ListChannelMessages(ctx, channelID, userID, (page-1)*models.MessagePageSize, models.MessagePageSize)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	if messages == nil {
		messages = []*models.Message{}
	}

	return &models.MessagePage{
		Messages:  messages,
		IsDeleted: channel.IsDeleted,
		Page:      page,
		HasMore:   len(messages) == models.MessagePageSize,
	}, nil
}

func (s *MessageService) EditMessage(ctx context.Context, userID string, req *models.EditMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if req.MessageID == "" || content == "" {
		return nil, fmt.Errorf("%w: messageId and content are required", apperrors.ErrValidation)
	}

	message, err := s.ownMessage(ctx, userID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if message.IsDeletedForAll {
		return nil, fmt.Errorf("%w: message was deleted", apperrors.ErrInvalidState)
	}

	channel, err := s.db.GetChannelByID(ctx, message.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.IsDeleted {
		return nil, fmt.Errorf("%w: channel has been deleted", apperrors.ErrInvalidState)
	}

	return s.db.UpdateMessageContent(ctx, message.ID, content)
}

// DeleteMessage deletes for everyone (irreversibly replacing the content) or
// hides the message from the caller only. Both modes are idempotent.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID string, mode models.DeleteMode) (*models.Message, error) {
	switch mode {
	case models.DeleteForMe, models.DeleteForEveryone:
	case "":
		mode = models.DeleteForEveryone
	default:
		return nil, fmt.Errorf("%w: unknown delete mode %q", apperrors.ErrValidation, mode)
	}

	message, err := s.ownMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	if mode == models.DeleteForMe {
		if err := s.db.AddDeletedFor(ctx, message.ID, userID); err != nil {
			return nil, err
		}
		return s.db.GetMessageByID(ctx, message.ID)
	}

	if message.IsDeletedForAll {
		return message, nil
	}
	deleted, err := s.db.MarkDeletedForAll(ctx, message.ID, models.DeletedMessageNotice)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Message deleted for everyone", "message_id", message.ID, "channel_id", message.ChannelID)
	return deleted, nil
}

// SearchMessages looks for keyword across every channel the caller belongs to.
func (s *MessageService) SearchMessages(ctx context.Context, userID, keyword string) ([]*models.Message, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", apperrors.ErrValidation)
	}

	channels, err := s.db.ListChannelsForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return []*models.Message{}, nil
	}
	channelIDs := make([]string, 0, len(channels))
	for _, c := range channels {
		channelIDs = append(channelIDs, c.ID)
	}

	messages, err := s.db.SearchMessages(ctx, channelIDs, userID, keyword, models.SearchResultsLimit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	return messages, nil
}

func (s *MessageService) ownMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("%w: messageId is required", apperrors.ErrValidation)
	}
	message, err := s.db.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		return nil, fmt.Errorf("%w: only the sender can change this message", apperrors.ErrUnauthorized)
	}
	return message, nil
}

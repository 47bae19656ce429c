package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Row types for the SQLite schema. Set-valued fields (channel members,
// per-user message deletions) live in their own tables.

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"not null;index"`
	Email        string `gorm:"not null"`
	EmailKey     string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type channelRow struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Description  string
	IsPrivate    bool
	PasswordHash string
	AdminID      string `gorm:"not null;index"`
	IsDeleted    bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"index"`
}

func (channelRow) TableName() string { return "channels" }

type channelMemberRow struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	ChannelID string `gorm:"not null;uniqueIndex:channel_member_idx"`
	UserID    string `gorm:"not null;uniqueIndex:channel_member_idx;index"`
}

func (channelMemberRow) TableName() string { return "channel_members" }

type messageRow struct {
	Seq             uint   `gorm:"primaryKey;autoIncrement"`
	ID              string `gorm:"not null;uniqueIndex"`
	SenderID        string `gorm:"not null"`
	ChannelID       string `gorm:"not null;index"`
	Content         string `gorm:"not null"`
	IsDeletedForAll bool   `gorm:"not null;default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	EditedAt        *time.Time
}

func (messageRow) TableName() string { return "messages" }

type messageHiddenRow struct {
	MessageID string `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey"`
}

func (messageHiddenRow) TableName() string { return "message_hidden" }

// SQLiteDB is the single-file store selected with DB_DRIVER=sqlite.
type SQLiteDB struct {
	db *gorm.DB
}

func NewSQLiteDB(path string, log logger.Logger) (*SQLiteDB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := gorm.Open(sqlite.Open(path+sep+"_busy_timeout=5000"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time; serialize in the pool instead of
	// failing with "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&userRow{}, &channelRow{}, &channelMemberRow{}, &messageRow{}, &messageHiddenRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	log.Info("Connected to database successfully", "driver", "sqlite", "path", path)
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormNotFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, what)
	}
	return err
}

func (r *userRow) model() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func usersFromRows(rows []userRow) []*models.User {
	users := make([]*models.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].model())
	}
	return users
}

// User Repository Implementation
func (s *SQLiteDB) CreateUser(ctx context.Context, user *models.User) error {
	row := userRow{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		EmailKey:     strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.CreatedAt = row.CreatedAt
	user.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("email_key = ?", strings.ToLower(email)).First(&row).Error; err != nil {
		return nil, gormNotFound(err, "user")
	}
	return row.model(), nil
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, gormNotFound(err, "user")
	}
	return row.model(), nil
}

func (s *SQLiteDB) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []userRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("username").Find(&rows).Error; err != nil {
		return nil, err
	}
	return usersFromRows(rows), nil
}

func (s *SQLiteDB) UpdateUsername(ctx context.Context, id, username string) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).
		Updates(map[string]any{"username": username, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: user", apperrors.ErrNotFound)
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteDB) SearchUsers(ctx context.Context, keyword, excludeID string, limit int) ([]*models.User, error) {
	pattern := likePattern(strings.ToLower(keyword))
	var rows []userRow
	err := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where(`(lower(username) LIKE ? ESCAPE '\' OR email_key LIKE ? ESCAPE '\')`, pattern, pattern).
		Order("username").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return usersFromRows(rows), nil
}

// Channel Repository Implementation
func (s *SQLiteDB) loadMembers(tx *gorm.DB, channelIDs []string) (map[string][]string, error) {
	var rows []channelMemberRow
	if err := tx.Where("channel_id IN ?", channelIDs).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	members := make(map[string][]string, len(channelIDs))
	for _, r := range rows {
		members[r.ChannelID] = append(members[r.ChannelID], r.UserID)
	}
	return members, nil
}

func (r *channelRow) model(members []string) *models.Channel {
	if members == nil {
		members = []string{}
	}
	return &models.Channel{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		IsPrivate:    r.IsPrivate,
		PasswordHash: r.PasswordHash,
		AdminID:      r.AdminID,
		Members:      members,
		IsDeleted:    r.IsDeleted,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *SQLiteDB) CreateChannel(ctx context.Context, channel *models.Channel) error {
	row := channelRow{
		ID:           channel.ID,
		Name:         channel.Name,
		Description:  channel.Description,
		IsPrivate:    channel.IsPrivate,
		PasswordHash: channel.PasswordHash,
		AdminID:      channel.AdminID,
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create channel: %w", err)
		}
		for _, userID := range channel.Members {
			if err := tx.Create(&channelMemberRow{ChannelID: row.ID, UserID: userID}).Error; err != nil {
				return err
			}
		}
		channel.CreatedAt = row.CreatedAt
		channel.UpdatedAt = row.UpdatedAt
		return nil
	})
}

func (s *SQLiteDB) GetChannelByID(ctx context.Context, id string) (*models.Channel, error) {
	tx := s.db.WithContext(ctx)
	var row channelRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, gormNotFound(err, "channel")
	}
	members, err := s.loadMembers(tx, []string{id})
	if err != nil {
		return nil, err
	}
	return row.model(members[id]), nil
}

func (s *SQLiteDB) ListChannelsForMember(ctx context.Context, userID string) ([]*models.Channel, error) {
	tx := s.db.WithContext(ctx)
	var rows []channelRow
	err := tx.Where("id IN (?)", tx.Model(&channelMemberRow{}).Select("channel_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	members, err := s.loadMembers(tx, ids)
	if err != nil {
		return nil, err
	}
	channels := make([]*models.Channel, 0, len(rows))
	for i := range rows {
		channels = append(channels, rows[i].model(members[rows[i].ID]))
	}
	return channels, nil
}

func channelExists(tx *gorm.DB, channelID string) error {
	var count int64
	if err := tx.Model(&channelRow{}).Where("id = ?", channelID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: channel", apperrors.ErrNotFound)
	}
	return nil
}

func touchChannel(tx *gorm.DB, channelID string) error {
	return tx.Model(&channelRow{}).Where("id = ?", channelID).Update("updated_at", time.Now()).Error
}

func (s *SQLiteDB) AddMember(ctx context.Context, channelID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := channelExists(tx, channelID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&channelMemberRow{}).Where("channel_id = ? AND user_id = ?", channelID, userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(&channelMemberRow{ChannelID: channelID, UserID: userID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		return touchChannel(tx, channelID)
	})
}

func (s *SQLiteDB) RemoveMember(ctx context.Context, channelID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := channelExists(tx, channelID); err != nil {
			return err
		}
		res := tx.Where("channel_id = ? AND user_id = ?", channelID, userID).Delete(&channelMemberRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return touchChannel(tx, channelID)
	})
}

func (s *SQLiteDB) MarkChannelDeleted(ctx context.Context, channelID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := channelExists(tx, channelID); err != nil {
			return err
		}
		return tx.Model(&channelRow{}).Where("id = ? AND is_deleted = ?", channelID, false).
			Updates(map[string]any{"is_deleted": true, "updated_at": time.Now()}).Error
	})
}

// Message Repository Implementation
func (s *SQLiteDB) hydrateMessages(tx *gorm.DB, rows []messageRow) ([]*models.Message, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	senderIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
		senderIDs = append(senderIDs, r.SenderID)
	}

	var hidden []messageHiddenRow
	if err := tx.Where("message_id IN ?", ids).Find(&hidden).Error; err != nil {
		return nil, err
	}
	deletedFor := make(map[string][]string)
	for _, h := range hidden {
		deletedFor[h.MessageID] = append(deletedFor[h.MessageID], h.UserID)
	}

	var senders []userRow
	if err := tx.Where("id IN ?", senderIDs).Find(&senders).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(senders))
	for _, u := range senders {
		names[u.ID] = u.Username
	}

	messages := make([]*models.Message, 0, len(rows))
	for _, r := range rows {
		df := deletedFor[r.ID]
		if df == nil {
			df = []string{}
		}
		messages = append(messages, &models.Message{
			ID:              r.ID,
			SenderID:        r.SenderID,
			Sender:          models.UserSummary{ID: r.SenderID, Username: names[r.SenderID]},
			ChannelID:       r.ChannelID,
			Content:         r.Content,
			IsDeletedForAll: r.IsDeletedForAll,
			DeletedFor:      df,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
			EditedAt:        r.EditedAt,
		})
	}
	return messages, nil
}

func (s *SQLiteDB) CreateMessage(ctx context.Context, message *models.Message) error {
	row := messageRow{
		ID:        message.ID,
		SenderID:  message.SenderID,
		ChannelID: message.ChannelID,
		Content:   message.Content,
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		if err := touchChannel(tx, message.ChannelID); err != nil {
			return err
		}
		var sender userRow
		if err := tx.Where("id = ?", message.SenderID).First(&sender).Error; err != nil {
			return gormNotFound(err, "user")
		}
		message.Sender = models.UserSummary{ID: sender.ID, Username: sender.Username}
		message.CreatedAt = row.CreatedAt
		message.UpdatedAt = row.UpdatedAt
		if message.DeletedFor == nil {
			message.DeletedFor = []string{}
		}
		return nil
	})
}

func (s *SQLiteDB) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	tx := s.db.WithContext(ctx)
	var row messageRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, gormNotFound(err, "message")
	}
	messages, err := s.hydrateMessages(tx, []messageRow{row})
	if err != nil {
		return nil, err
	}
	return messages[0], nil
}

func visibleTo(tx *gorm.DB, viewerID string) *gorm.DB {
	return tx.Where("NOT EXISTS (SELECT 1 FROM message_hidden h WHERE h.message_id = messages.id AND h.user_id = ?)", viewerID)
}

func (s *SQLiteDB) ListChannelMessages(ctx context.Context, channelID, viewerID string, offset, limit int) ([]*models.Message, error) {
	tx := s.db.WithContext(ctx)
	var rows []messageRow
	err := visibleTo(tx.Where("channel_id = ?", channelID), viewerID).
		Order("seq DESC").Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.hydrateMessages(tx, rows)
}

func (s *SQLiteDB) updateMessage(ctx context.Context, id string, fields map[string]any) (*models.Message, error) {
	res := s.db.WithContext(ctx).Model(&messageRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: message", apperrors.ErrNotFound)
	}
	return s.GetMessageByID(ctx, id)
}

func (s *SQLiteDB) UpdateMessageContent(ctx context.Context, id, content string) (*models.Message, error) {
	now := time.Now()
	return s.updateMessage(ctx, id, map[string]any{"content": content, "updated_at": now, "edited_at": now})
}

func (s *SQLiteDB) MarkDeletedForAll(ctx context.Context, id, notice string) (*models.Message, error) {
	return s.updateMessage(ctx, id, map[string]any{"content": notice, "is_deleted_for_all": true, "updated_at": time.Now()})
}

func (s *SQLiteDB) AddDeletedFor(ctx context.Context, id, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&messageRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: message", apperrors.ErrNotFound)
		}
		row := messageHiddenRow{MessageID: id, UserID: userID}
		return tx.Where(row).FirstOrCreate(&row).Error
	})
}

func (s *SQLiteDB) SearchMessages(ctx context.Context, channelIDs []string, viewerID, keyword string, limit int) ([]*models.Message, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}
	tx := s.db.WithContext(ctx)
	var rows []messageRow
	err := visibleTo(tx.Where("channel_id IN ?", channelIDs), viewerID).
		Where("is_deleted_for_all = ?", false).
		Where(`lower(content) LIKE ? ESCAPE '\'`, likePattern(strings.ToLower(keyword))).
		Order("seq DESC").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.hydrateMessages(tx, rows)
}

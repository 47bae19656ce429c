package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string, log logger.Logger) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Connected to database successfully", "driver", "postgres")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, what)
	}
	return err
}

// likePattern escapes LIKE metacharacters so keyword matches literally.
func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// User Repository Implementation
func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := db.pool.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash).Scan(
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(db.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

func (db *PostgresDB) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (db *PostgresDB) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY username`
	return db.queryUsers(ctx, query, ids)
}

func (db *PostgresDB) UpdateUsername(ctx context.Context, id, username string) (*models.User, error) {
	query := `UPDATE users SET username = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(db.pool.QueryRow(ctx, query, id, username))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

func (db *PostgresDB) SearchUsers(ctx context.Context, keyword, excludeID string, limit int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id <> $1 AND (username ILIKE $2 OR email ILIKE $2)
		ORDER BY username
		LIMIT $3`
	return db.queryUsers(ctx, query, excludeID, likePattern(keyword), limit)
}

// Channel Repository Implementation
const channelColumns = `id, name, description, is_private, password_hash, admin_id, members, is_deleted, created_at, updated_at`

func scanChannel(row pgx.Row) (*models.Channel, error) {
	c := &models.Channel{}
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsPrivate, &c.PasswordHash,
		&c.AdminID, &c.Members, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (db *PostgresDB) CreateChannel(ctx context.Context, channel *models.Channel) error {
	query := `
		INSERT INTO channels (id, name, description, is_private, password_hash, admin_id, members, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := db.pool.QueryRow(ctx, query, channel.ID, channel.Name, channel.Description, channel.IsPrivate,
		channel.PasswordHash, channel.AdminID, channel.Members).Scan(&channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetChannelByID(ctx context.Context, id string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`
	c, err := scanChannel(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "channel")
	}
	return c, nil
}

func (db *PostgresDB) ListChannelsForMember(ctx context.Context, userID string) ([]*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE $1 = ANY(members) ORDER BY updated_at DESC`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// execOnChannel runs an update that may legitimately touch zero rows (e.g.
// adding an existing member) and only reports not-found when the channel is
// really missing.
func (db *PostgresDB) execOnChannel(ctx context.Context, channelID, query string, args ...any) error {
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM channels WHERE id = $1)`, channelID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: channel", apperrors.ErrNotFound)
	}
	return nil
}

func (db *PostgresDB) AddMember(ctx context.Context, channelID, userID string) error {
	query := `
		UPDATE channels SET members = array_append(members, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(members))`
	return db.execOnChannel(ctx, channelID, query, channelID, userID)
}

func (db *PostgresDB) RemoveMember(ctx context.Context, channelID, userID string) error {
	query := `
		UPDATE channels SET members = array_remove(members, $2), updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(members)`
	return db.execOnChannel(ctx, channelID, query, channelID, userID)
}

func (db *PostgresDB) MarkChannelDeleted(ctx context.Context, channelID string) error {
	query := `UPDATE channels SET is_deleted = true, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`
	return db.execOnChannel(ctx, channelID, query, channelID)
}

// Message Repository Implementation
const messageColumns = `m.id, m.sender_id, u.username, m.channel_id, m.content, m.is_deleted_for_all,
	m.deleted_for, m.created_at, m.updated_at, m.edited_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(&m.ID, &m.SenderID, &m.Sender.Username, &m.ChannelID, &m.Content, &m.IsDeletedForAll,
		&m.DeletedFor, &m.CreatedAt, &m.UpdatedAt, &m.EditedAt)
	m.Sender.ID = m.SenderID
	return m, err
}

func (db *PostgresDB) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (db *PostgresDB) CreateMessage(ctx context.Context, message *models.Message) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (id, sender_id, channel_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at`
	if err := tx.QueryRow(ctx, query, message.ID, message.SenderID, message.ChannelID, message.Content).Scan(
		&message.CreatedAt, &message.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	// Bump the channel so channel lists order by latest activity.
	if _, err := tx.Exec(ctx, `UPDATE channels SET updated_at = NOW() WHERE id = $1`, message.ChannelID); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, message.SenderID).Scan(&message.Sender.Username); err != nil {
		return notFound(err, "user")
	}
	message.Sender.ID = message.SenderID
	if message.DeletedFor == nil {
		message.DeletedFor = []string{}
	}

	return tx.Commit(ctx)
}

func (db *PostgresDB) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m JOIN users u ON m.sender_id = u.id WHERE m.id = $1`
	m, err := scanMessage(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "message")
	}
	return m, nil
}

func (db *PostgresDB) ListChannelMessages(ctx context.Context, channelID, viewerID string, offset, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.channel_id = $1 AND NOT ($2 = ANY(m.deleted_for))
		ORDER BY m.created_at DESC, m.seq DESC
		OFFSET $3 LIMIT $4`
	return db.queryMessages(ctx, query, channelID, viewerID, offset, limit)
}

func (db *PostgresDB) UpdateMessageContent(ctx context.Context, id, content string) (*models.Message, error) {
	if _, err := db.pool.Exec(ctx,
		`UPDATE messages SET content = $2, updated_at = NOW(), edited_at = NOW() WHERE id = $1`, id, content); err != nil {
		return nil, err
	}
	return db.GetMessageByID(ctx, id)
}

func (db *PostgresDB) MarkDeletedForAll(ctx context.Context, id, notice string) (*models.Message, error) {
	if _, err := db.pool.Exec(ctx,
		`UPDATE messages SET content = $2, is_deleted_for_all = true, updated_at = NOW() WHERE id = $1`, id, notice); err != nil {
		return nil, err
	}
	return db.GetMessageByID(ctx, id)
}

func (db *PostgresDB) AddDeletedFor(ctx context.Context, id, userID string) error {
	query := `
		UPDATE messages SET deleted_for = array_append(deleted_for, $2)
		WHERE id = $1 AND NOT ($2 = ANY(deleted_for))`
	tag, err := db.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetMessageByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (db *PostgresDB) SearchMessages(ctx context.Context, channelIDs []string, viewerID, keyword string, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.channel_id = ANY($1)
		  AND NOT m.is_deleted_for_all
		  AND NOT ($2 = ANY(m.deleted_for))
		  AND m.content ILIKE $3
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT $4`
	return db.queryMessages(ctx, query, channelIDs, viewerID, likePattern(keyword), limit)
}

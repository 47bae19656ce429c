package models

import (
	"slices"
	"time"
)

const (
	// DeletedMessageNotice replaces the content of a message deleted for everyone.
	DeletedMessageNotice = "This message was deleted"

	MessagePageSize    = 20
	SearchResultsLimit = 50
)

type DeleteMode string

const (
	DeleteForMe       DeleteMode = "me"
	DeleteForEveryone DeleteMode = "everyone"
)

type Message struct {
	ID              string      `json:"_id"`
	SenderID        string      `json:"-"`
	Sender          UserSummary `json:"sender"`
	ChannelID       string      `json:"channelId"`
	Content         string      `json:"content"`
	IsDeletedForAll bool        `json:"isDeletedForAll"`
	DeletedFor      []string    `json:"-"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	EditedAt        *time.Time  `json:"editedAt,omitempty"`
}

// VisibleTo reports whether userID has not deleted the message for themselves.
func (m *Message) VisibleTo(userID string) bool {
	return !slices.Contains(m.DeletedFor, userID)
}

type SendMessageRequest struct {
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
}

type EditMessageRequest struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// MessagePage is the single response shape of a history fetch.
type MessagePage struct {
	Messages  []*Message `json:"messages"`
	IsDeleted bool       `json:"isDeleted"`
	Page      int        `json:"page"`
	HasMore   bool       `json:"hasMore"`
}

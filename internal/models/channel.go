package models

import (
	"slices"
	"time"
)

const DefaultChannelDescription = "Welcome to this channel!"

type Channel struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	IsPrivate    bool      `json:"isPrivate"`
	PasswordHash string    `json:"-"`
	AdminID      string    `json:"admin"`
	Members      []string  `json:"members"`
	IsDeleted    bool      `json:"isDeleted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (c *Channel) HasMember(userID string) bool {
	return slices.Contains(c.Members, userID)
}

type CreateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password"`
}

type JoinChannelRequest struct {
	ChannelID string `json:"channelId"`
	Password  string `json:"password"`
}

type LeaveChannelRequest struct {
	ChannelID string `json:"channelId"`
}

package models

import "time"

type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary is the public view of a user embedded in channels and messages.
type UserSummary struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RenameRequest struct {
	NewName string `json:"newName"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

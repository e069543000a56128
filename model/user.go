package model

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
)

// User is the credential record. Password and the reset fields never leave the server.
type User struct {
	ID               int        `json:"id"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	Password         string     `json:"-"`
	Role             string     `json:"role"`
	ResetToken       *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	IsActive         bool       `json:"isActive"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// UserSummary is the identity block embedded in token responses.
type UserSummary struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
	}
}

package model

import "github.com/golang-jwt/jwt/v5"

type AppClaims struct {
	UserID   int    `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *AppClaims) Summary() UserSummary {
	return UserSummary{
		ID:       c.UserID,
		Email:    c.Email,
		Username: c.Username,
		Role:     c.Role,
	}
}

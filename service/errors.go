package service

import "errors"

var (
	ErrUserExists          = errors.New("user with this email or username already exists")
	ErrRegistrationFailed  = errors.New("failed to create user account")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDeactivated  = errors.New("account is deactivated")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrResetTokenExpired   = errors.New("reset token has expired")
	ErrResetEmailFailed    = errors.New("failed to send password reset email")
	ErrIncorrectPassword   = errors.New("current password is incorrect")
	ErrUserNotFound        = errors.New("user not found")
	ErrPasswordTooLong     = errors.New("password must be at most 72 bytes")

	ErrCauseNotFound  = errors.New("cause not found")
	ErrInvalidGoal    = errors.New("goal must not be negative")
	ErrInvalidAmount  = errors.New("donation amount must be greater than zero")
	ErrDuplicateOrder = errors.New("a donation for this order has already been recorded")
)

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"lighthouse-api/model"
	"lighthouse-api/repository"
)

// UserService handles user-related business logic outside the auth flows.
type UserService struct {
	userRepo repository.IUserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.IUserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetProfile loads the current row for userID. The returned user carries no
// credential fields when serialized.
func (s *UserService) GetProfile(ctx context.Context, userID int) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return user, nil
}

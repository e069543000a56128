package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"lighthouse-api/logger"
	"lighthouse-api/model"
	"lighthouse-api/repository"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CauseService manages causes and caches the full list in redis.
type CauseService struct {
	repo     repository.ICauseRepository
	cache    ICacheClient
	cacheTTL time.Duration
}

// NewCauseService creates a CauseService. A nil cache disables caching.
func NewCauseService(repo repository.ICauseRepository, cache ICacheClient, cacheTTL time.Duration) *CauseService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &CauseService{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

func (s *CauseService) CreateCause(ctx context.Context, req model.CreateCauseRequest) (*model.Cause, error) {
	if req.Goal.IsNegative() {
		return nil, ErrInvalidGoal
	}
	cause := &model.Cause{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Goal:        req.Goal,
		Raised:      decimal.Zero,
		ImageURLs:   nonNil(req.ImageURLs),
	}
	if err := s.repo.CreateCause(ctx, cause); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return cause, nil
}

// ListCauses returns all causes using a cache-aside strategy.
func (s *CauseService) ListCauses(ctx context.Context) ([]*model.Cause, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, causesCacheKey).Result()
		if err == nil {
			var causes []*model.Cause
			if err := json.Unmarshal([]byte(cached), &causes); err == nil {
				return causes, nil
			}
		}
	}

	causes, err := s.repo.GetAllCauses(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(causes); err == nil {
			if err := s.cache.Set(ctx, causesCacheKey, data, s.cacheTTL).Err(); err != nil {
				logger.Log.WithError(err).Warn("Failed to cache causes")
			}
		}
	}
	return causes, nil
}

func (s *CauseService) GetCause(ctx context.Context, id string) (*model.Cause, error) {
	cause, err := s.repo.GetCauseByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCauseNotFound
		}
		return nil, err
	}
	return cause, nil
}

// UpdateCause applies the supplied fields. The image list starts from
// ExistingImages when given, drops ImagesToDelete, then appends ImageURLs.
func (s *CauseService) UpdateCause(ctx context.Context, id string, req model.UpdateCauseRequest) (*model.Cause, error) {
	cause, err := s.GetCause(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		cause.Title = *req.Title
	}
	if req.Description != nil {
		cause.Description = *req.Description
	}
	if req.Category != nil {
		cause.Category = *req.Category
	}
	if req.Goal != nil {
		if req.Goal.IsNegative() {
			return nil, ErrInvalidGoal
		}
		cause.Goal = *req.Goal
	}
	if req.ExistingImages != nil {
		cause.ImageURLs = req.ExistingImages
	}
	if len(req.ImagesToDelete) > 0 {
		drop := make(map[string]struct{}, len(req.ImagesToDelete))
		for _, u := range req.ImagesToDelete {
			drop[u] = struct{}{}
		}
		kept := make([]string, 0, len(cause.ImageURLs))
		for _, u := range cause.ImageURLs {
			if _, ok := drop[u]; !ok {
				kept = append(kept, u)
			}
		}
		cause.ImageURLs = kept
	}
	cause.ImageURLs = append(nonNil(cause.ImageURLs), req.ImageURLs...)

	if err := s.repo.UpdateCause(ctx, cause); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCauseNotFound
		}
		return nil, err
	}
	s.invalidate(ctx)
	return cause, nil
}

func (s *CauseService) DeleteCause(ctx context.Context, id string) error {
	if err := s.repo.DeleteCause(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCauseNotFound
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CauseService) invalidate(ctx context.Context) {
	invalidateCauses(ctx, s.cache)
}

func invalidateCauses(ctx context.Context, cache ICacheClient) {
	if cache == nil {
		return
	}
	if err := cache.Del(ctx, causesCacheKey).Err(); err != nil {
		logger.Log.WithError(err).Warn("Failed to invalidate causes cache")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

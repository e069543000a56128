package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cause struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Goal        decimal.Decimal `json:"goal"`
	Raised      decimal.Decimal `json:"raised"`
	ImageURLs   []string        `json:"imageUrls"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CreateCauseRequest is the typed command a cause is created from, whether the
// client sent JSON or multipart form fields.
type CreateCauseRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Category    string          `json:"category" validate:"required"`
	Goal        decimal.Decimal `json:"goal"`
	ImageURLs   []string        `json:"imageUrls" validate:"omitempty,dive,url"`
}

// UpdateCauseRequest carries only the fields the client supplied. A non-nil
// ExistingImages replaces the stored image list before new URLs are appended.
type UpdateCauseRequest struct {
	Title          *string          `json:"title,omitempty" validate:"omitempty,min=1"`
	Description    *string          `json:"description,omitempty" validate:"omitempty,min=1"`
	Category       *string          `json:"category,omitempty" validate:"omitempty,min=1"`
	Goal           *decimal.Decimal `json:"goal,omitempty"`
	ImageURLs      []string         `json:"imageUrls,omitempty" validate:"omitempty,dive,url"`
	ExistingImages []string         `json:"existingImages,omitempty" validate:"omitempty,dive,url"`
	ImagesToDelete []string         `json:"imagesToDelete,omitempty"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
)

type Donation struct {
	ID         string          `json:"id"`
	CauseID    string          `json:"causeId"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	DonorName  string          `json:"donorName,omitempty"`
	DonorEmail string          `json:"donorEmail,omitempty"`
	Message    string          `json:"message,omitempty"`
	OrderID    string          `json:"orderId"`
	Status     DonationStatus  `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type CreateDonationRequest struct {
	CauseID    string          `json:"causeId" validate:"required,uuid"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	DonorName  string          `json:"donorName" validate:"omitempty,max=200"`
	DonorEmail string          `json:"donorEmail" validate:"omitempty,email"`
	Message    string          `json:"message" validate:"omitempty,max=2000"`
	OrderID    string          `json:"orderId" validate:"required"`
}

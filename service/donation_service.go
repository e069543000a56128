package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"lighthouse-api/logger"
	"lighthouse-api/model"
	"lighthouse-api/repository"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultCurrency = "USD"

type DonationService struct {
	db           *sql.DB
	causeRepo    repository.ICauseRepository
	donationRepo repository.IDonationRepository
	cache        ICacheClient
}

func NewDonationService(db *sql.DB, causeRepo repository.ICauseRepository, donationRepo repository.IDonationRepository, cache ICacheClient) *DonationService {
	return &DonationService{
		db:           db,
		causeRepo:    causeRepo,
		donationRepo: donationRepo,
		cache:        cache,
	}
}

// RecordDonation stores a completed donation and adds its amount to the cause's
// raised total in one transaction.
func (s *DonationService) RecordDonation(ctx context.Context, req model.CreateDonationRequest) (*model.Donation, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"cause_id": req.CauseID,
		"order_id": req.OrderID,
		"amount":   req.Amount.String(),
	})

	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	log.Info("Starting donation recording")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	cause, err := s.causeRepo.GetCauseForUpdate(tx, req.CauseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCauseNotFound
		}
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	donation := &model.Donation{
		ID:         uuid.NewString(),
		CauseID:    cause.ID,
		Amount:     req.Amount,
		Currency:   currency,
		DonorName:  req.DonorName,
		DonorEmail: req.DonorEmail,
		Message:    req.Message,
		OrderID:    req.OrderID,
		Status:     model.DonationCompleted,
	}
	if err := s.donationRepo.CreateDonation(tx, donation); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			return nil, ErrDuplicateOrder
		}
		return nil, fmt.Errorf("could not create donation record: %w", err)
	}

	if err := s.causeRepo.UpdateCauseRaised(tx, cause.ID, cause.Raised.Add(req.Amount)); err != nil {
		return nil, fmt.Errorf("could not update cause total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}

	invalidateCauses(ctx, s.cache)
	log.WithField("donation_id", donation.ID).Info("Donation recorded successfully")
	return donation, nil
}

func (s *DonationService) ListDonations(ctx context.Context) ([]*model.Donation, error) {
	return s.donationRepo.GetDonations(ctx)
}

func (s *DonationService) ListDonationsForCause(ctx context.Context, causeID string) ([]*model.Donation, error) {
	if _, err := s.causeRepo.GetCauseByID(ctx, causeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCauseNotFound
		}
		return nil, err
	}
	return s.donationRepo.GetDonationsByCauseID(ctx, causeID)
}

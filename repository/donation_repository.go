package repository

import (
	"context"
	"database/sql"
	"errors"
	"lighthouse-api/logger"
	"lighthouse-api/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrDuplicateOrder is returned when a donation for the same order id already exists.
var ErrDuplicateOrder = errors.New("donation for this order already exists")

// IDonationRepository defines the contract for donation database operations.
type IDonationRepository interface {
	CreateDonation(tx *sql.Tx, donation *model.Donation) error
	GetDonations(ctx context.Context) ([]*model.Donation, error)
	GetDonationsByCauseID(ctx context.Context, causeID string) ([]*model.Donation, error)
}

type DonationRepository struct {
	DB *sql.DB
}

func NewDonationRepository(db *sql.DB) *DonationRepository {
	return &DonationRepository{DB: db}
}

const donationColumns = `id, cause_id, amount, currency, donor_name, donor_email, message, order_id, status, created_at`

func (r *DonationRepository) CreateDonation(tx *sql.Tx, donation *model.Donation) error {
	log := logger.Log.WithFields(logrus.Fields{
		"donation_id": donation.ID,
		"cause_id":    donation.CauseID,
		"amount":      donation.Amount.String(),
	})
	log.Info("Executing query to create a new donation")

	query := `INSERT INTO donations (id, cause_id, amount, currency, donor_name, donor_email, message, order_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`
	err := tx.QueryRow(query, donation.ID, donation.CauseID, donation.Amount, donation.Currency,
		donation.DonorName, donation.DonorEmail, donation.Message, donation.OrderID, string(donation.Status)).
		Scan(&donation.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			log.Warn("Donation for order already recorded")
			return ErrDuplicateOrder
		}
		log.WithError(err).Error("Failed to execute create donation query")
		return err
	}
	return nil
}

func (r *DonationRepository) GetDonations(ctx context.Context) ([]*model.Donation, error) {
	logger.Log.Info("Executing query to get all donations")
	return r.query(ctx, `SELECT `+donationColumns+` FROM donations ORDER BY created_at DESC`)
}

// GetDonationsByCauseID retrieves all donations for a cause, newest first.
func (r *DonationRepository) GetDonationsByCauseID(ctx context.Context, causeID string) ([]*model.Donation, error) {
	logger.Log.WithField("cause_id", causeID).Info("Executing query to get donations by cause ID")
	return r.query(ctx, `SELECT `+donationColumns+` FROM donations WHERE cause_id = $1 ORDER BY created_at DESC`, causeID)
}

func (r *DonationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Donation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute donations query")
		return nil, err
	}
	defer rows.Close()

	donations := []*model.Donation{}
	for rows.Next() {
		var d model.Donation
		var status string
		if err := rows.Scan(&d.ID, &d.CauseID, &d.Amount, &d.Currency, &d.DonorName, &d.DonorEmail,
			&d.Message, &d.OrderID, &status, &d.CreatedAt); err != nil {
			logger.Log.WithError(err).Error("Failed to scan donation row")
			return nil, err
		}
		d.Status = model.DonationStatus(status)
		donations = append(donations, &d)
	}
	return donations, rows.Err()
}

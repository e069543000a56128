package repository

import (
	"context"
	"database/sql"
	"lighthouse-api/logger"
	"lighthouse-api/model"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ICauseRepository defines the contract for cause database operations.
type ICauseRepository interface {
	CreateCause(ctx context.Context, cause *model.Cause) error
	GetCauseByID(ctx context.Context, id string) (*model.Cause, error)
	GetAllCauses(ctx context.Context) ([]*model.Cause, error)
	UpdateCause(ctx context.Context, cause *model.Cause) error
	DeleteCause(ctx context.Context, id string) error
	GetCauseForUpdate(tx *sql.Tx, id string) (*model.Cause, error)
	UpdateCauseRaised(tx *sql.Tx, id string, raised decimal.Decimal) error
}

type CauseRepository struct {
	DB *sql.DB
}

func NewCauseRepository(db *sql.DB) *CauseRepository {
	return &CauseRepository{DB: db}
}

const causeColumns = `id, title, description, category, goal, raised, image_urls, created_at, updated_at`

func scanCause(row rowScanner) (*model.Cause, error) {
	var c model.Cause
	var urls pq.StringArray
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Goal, &c.Raised, &urls, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ImageURLs = []string(urls)
	if c.ImageURLs == nil {
		c.ImageURLs = []string{}
	}
	return &c, nil
}

// CreateCause inserts a cause. The caller assigns the id.
func (r *CauseRepository) CreateCause(ctx context.Context, cause *model.Cause) error {
	log := logger.Log.WithFields(logrus.Fields{
		"cause_id": cause.ID,
		"category": cause.Category,
	})
	log.Info("Executing query to create a new cause")

	query := `INSERT INTO causes (id, title, description, category, goal, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING raised, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, cause.ID, cause.Title, cause.Description, cause.Category, cause.Goal, pq.Array(cause.ImageURLs)).
		Scan(&cause.Raised, &cause.CreatedAt, &cause.UpdatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create cause query")
		return err
	}
	return nil
}

func (r *CauseRepository) GetCauseByID(ctx context.Context, id string) (*model.Cause, error) {
	cause, err := scanCause(r.DB.QueryRowContext(ctx, `SELECT `+causeColumns+` FROM causes WHERE id = $1`, id))
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Log.WithError(err).WithField("cause_id", id).Error("Failed to execute get cause query")
		}
		return nil, err
	}
	return cause, nil
}

func (r *CauseRepository) GetAllCauses(ctx context.Context) ([]*model.Cause, error) {
	log := logger.Log
	log.Info("Executing query to get all causes")

	rows, err := r.DB.QueryContext(ctx, `SELECT `+causeColumns+` FROM causes ORDER BY created_at DESC`)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for all causes")
		return nil, err
	}
	defer rows.Close()

	causes := []*model.Cause{}
	for rows.Next() {
		c, err := scanCause(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan cause row")
			return nil, err
		}
		causes = append(causes, c)
	}
	return causes, rows.Err()
}

func (r *CauseRepository) UpdateCause(ctx context.Context, cause *model.Cause) error {
	log := logger.Log.WithField("cause_id", cause.ID)
	log.Info("Executing query to update cause")

	query := `UPDATE causes
		SET title = $1, description = $2, category = $3, goal = $4, image_urls = $5, updated_at = now()
		WHERE id = $6
		RETURNING updated_at`
	err := r.DB.QueryRowContext(ctx, query, cause.Title, cause.Description, cause.Category, cause.Goal, pq.Array(cause.ImageURLs), cause.ID).
		Scan(&cause.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).Error("Failed to execute update cause query")
		}
		return err
	}
	return nil
}

func (r *CauseRepository) DeleteCause(ctx context.Context, id string) error {
	log := logger.Log.WithField("cause_id", id)
	log.Info("Executing query to delete cause")

	res, err := r.DB.ExecContext(ctx, `DELETE FROM causes WHERE id = $1`, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute delete cause query")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetCauseForUpdate locks the cause row for the rest of tx.
func (r *CauseRepository) GetCauseForUpdate(tx *sql.Tx, id string) (*model.Cause, error) {
	log := logger.Log.WithField("cause_id", id)
	log.Info("Executing query to get cause for update")

	cause := &model.Cause{}
	query := `SELECT id, goal, raised FROM causes WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(query, id).Scan(&cause.ID, &cause.Goal, &cause.Raised)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Cause not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get cause for update query")
		}
		return nil, err
	}
	return cause, nil
}

func (r *CauseRepository) UpdateCauseRaised(tx *sql.Tx, id string, raised decimal.Decimal) error {
	log := logger.Log.WithFields(logrus.Fields{
		"cause_id":   id,
		"new_raised": raised.String(),
	})
	log.Info("Executing query to update cause raised amount")

	_, err := tx.Exec(`UPDATE causes SET raised = $1, updated_at = now() WHERE id = $2`, raised, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update cause raised query")
		return err
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"lighthouse-api/logger"
	"lighthouse-api/model"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrDuplicateUser is returned when an insert hits the unique email or username constraint.
var ErrDuplicateUser = errors.New("user with this email or username already exists")

// IUserRepository defines the contract for the credential store.
// Lookups return sql.ErrNoRows when no row matches.
type IUserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	GetUserByID(ctx context.Context, id int) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*model.User, error)
	SetResetToken(ctx context.Context, userID int, token string, expiry time.Time) error
	ClearResetToken(ctx context.Context, userID int) error
	UpdatePassword(ctx context.Context, userID int, passwordHash string) error
	ResetPassword(ctx context.Context, userID int, token, passwordHash string) (bool, error)
}

// UserRepository implements IUserRepository on postgres.
type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, email, username, password, role, reset_token, reset_token_expiry, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user   model.User
		token  sql.NullString
		expiry sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.Password, &user.Role,
		&token, &expiry, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		user.ResetToken = &token.String
	}
	if expiry.Valid {
		user.ResetTokenExpiry = &expiry.Time
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"email":    user.Email,
		"username": user.Username,
	})
	log.Info("Executing query to create a new user")

	query := `INSERT INTO users (email, username, password, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, user.Email, user.Username, user.Password, user.Role, user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			log.Info("User insert rejected by unique constraint")
			return ErrDuplicateUser
		}
		log.WithError(err).Error("Failed to execute create user query")
		return err
	}
	return nil
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, email, username).Scan(&exists); err != nil {
		logger.Log.WithError(err).Error("Failed to execute user existence query")
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) getOne(ctx context.Context, field string, query string, arg interface{}) (*model.User, error) {
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Log.WithError(err).WithField("lookup", field).Error("Failed to execute get user query")
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	return r.getOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepository) GetUserByResetToken(ctx context.Context, token string) (*model.User, error) {
	return r.getOne(ctx, "reset_token", `SELECT `+userColumns+` FROM users WHERE reset_token = $1`, token)
}

// SetResetToken stores the token and its expiry together.
func (r *UserRepository) SetResetToken(ctx context.Context, userID int, token string, expiry time.Time) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"expires_at": expiry,
	})
	log.Info("Executing query to set reset token")

	query := `UPDATE users SET reset_token = $1, reset_token_expiry = $2, updated_at = now() WHERE id = $3`
	if _, err := r.DB.ExecContext(ctx, query, token, expiry, userID); err != nil {
		log.WithError(err).Error("Failed to execute set reset token query")
		return err
	}
	return nil
}

// ClearResetToken clears the token and its expiry together.
func (r *UserRepository) ClearResetToken(ctx context.Context, userID int) error {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to clear reset token")

	query := `UPDATE users SET reset_token = NULL, reset_token_expiry = NULL, updated_at = now() WHERE id = $1`
	if _, err := r.DB.ExecContext(ctx, query, userID); err != nil {
		log.WithError(err).Error("Failed to execute clear reset token query")
		return err
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to update password")

	query := `UPDATE users SET password = $1, updated_at = now() WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, passwordHash, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update password query")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResetPassword replaces the password and consumes the reset token in one statement.
// It reports false when the token no longer belongs to the user, which happens when a
// concurrent reset already consumed it.
func (r *UserRepository) ResetPassword(ctx context.Context, userID int, token, passwordHash string) (bool, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to reset password")

	query := `UPDATE users
		SET password = $1, reset_token = NULL, reset_token_expiry = NULL, updated_at = now()
		WHERE id = $2 AND reset_token = $3`
	res, err := r.DB.ExecContext(ctx, query, passwordHash, userID, token)
	if err != nil {
		log.WithError(err).Error("Failed to execute reset password query")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

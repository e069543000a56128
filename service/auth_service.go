package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"lighthouse-api/ledger"
	"lighthouse-api/logger"
	"lighthouse-api/metrics"
	"lighthouse-api/model"
	"lighthouse-api/notify"
	"lighthouse-api/repository"
	"lighthouse-api/token"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	// maxPasswordBytes is the longest input bcrypt accepts.
	maxPasswordBytes = 72

	defaultResetTokenTTL = time.Hour
	welcomeMailTimeout   = 30 * time.Second
)

// AuthService owns the account lifecycle: registration, login, token refresh,
// logout and the password flows.
type AuthService struct {
	userRepo    repository.IUserRepository
	issuer      *token.Issuer
	ledger      ledger.Ledger
	mailer      notify.Mailer
	now         func() time.Time
	resetTTL    time.Duration
	bcryptCost  int
	forgotFloor time.Duration

	dummyOnce sync.Once
	dummyHash string
	pending   sync.WaitGroup
}

type AuthOption func(*AuthService)

func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func WithResetTokenTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithForgotPasswordFloor pads every ForgotPassword call to at least d, so unknown
// emails cannot be told apart from known ones by response time.
func WithForgotPasswordFloor(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.forgotFloor = d
		}
	}
}

func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// NewAuthService creates a new AuthService. A nil mailer disables outgoing email.
func NewAuthService(userRepo repository.IUserRepository, issuer *token.Issuer, l ledger.Ledger, mailer notify.Mailer, opts ...AuthOption) *AuthService {
	if mailer == nil {
		mailer = notify.DisabledMailer{}
	}
	s := &AuthService{
		userRepo:   userRepo,
		issuer:     issuer,
		ledger:     l,
		mailer:     mailer,
		now:        time.Now,
		resetTTL:   defaultResetTokenTTL,
		bcryptCost: bcrypt.DefaultCost + 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkPasswordLength(password string) error {
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	if err := checkPasswordLength(password); err != nil {
		return "", err
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Wait blocks until background work started by the service (welcome emails) has finished.
func (s *AuthService) Wait() {
	s.pending.Wait()
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (resp *model.AuthResponse, err error) {
	defer func() { metrics.ObserveAuth("register", err) }()
	log := logger.Log.WithFields(logrus.Fields{"email": req.Email, "username": req.Username})

	if err := checkPasswordLength(req.Password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}
	if exists {
		log.Info("Registration rejected, user already exists")
		return nil, ErrUserExists
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	user := &model.User{
		Email:    req.Email,
		Username: req.Username,
		Password: hash,
		Role:     string(model.RoleAdmin),
		IsActive: true,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	resp, err = s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.sendWelcome(user.ID, user.Email, user.Username)
	log.WithField("user_id", user.ID).Info("User registered")
	return resp, nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (resp *model.AuthResponse, err error) {
	defer func() { metrics.ObserveAuth("login", err) }()

	var user *model.User
	if strings.Contains(req.UsernameOrEmail, "@") {
		user, err = s.userRepo.GetUserByEmail(ctx, req.UsernameOrEmail)
	} else {
		user, err = s.userRepo.GetUserByUsername(ctx, req.UsernameOrEmail)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Spend the same bcrypt work as a real comparison.
			s.CheckPasswordHash(req.Password, s.fallbackHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !s.CheckPasswordHash(req.Password, user.Password) {
		logger.Log.WithField("user_id", user.ID).Info("Login failed, wrong password")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		logger.Log.WithField("user_id", user.ID).Info("Login rejected, account deactivated")
		return nil, ErrAccountDeactivated
	}

	resp, err = s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	return resp, nil
}

// RefreshToken exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated and stays in the ledger.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (resp *model.TokenResponse, err error) {
	defer func() { metrics.ObserveAuth("refresh", err) }()
	log := logger.Log.WithField("token", logger.Fingerprint(refreshToken))

	live, err := s.ledger.Contains(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if !live {
		log.Info("Refresh rejected, token not in ledger")
		return nil, ErrInvalidRefreshToken
	}

	claims, err := s.issuer.Verify(refreshToken, token.Refresh)
	if err != nil {
		log.WithError(err).Info("Refresh rejected, token does not verify")
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		log.WithField("user_id", user.ID).Info("Refresh rejected, account deactivated")
		return nil, ErrInvalidRefreshToken
	}

	access, err := s.issuer.IssueAccess(subjectOf(user))
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{AccessToken: access}, nil
}

// Logout removes the refresh token from the ledger. Removing an unknown token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { metrics.ObserveAuth("logout", err) }()

	if err := s.ledger.Remove(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	logger.Log.WithField("token", logger.Fingerprint(refreshToken)).Info("Refresh token revoked")
	return nil
}

// ForgotPassword starts a reset for email. An unknown email is not an error so the
// caller cannot tell registered addresses apart.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { metrics.ObserveAuth("forgot_password", err) }()
	if s.forgotFloor > 0 {
		defer waitUntil(ctx, time.Now().Add(s.forgotFloor))
	}

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Log.Info("Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	resetToken, err := generateResetToken()
	if err != nil {
		return err
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, resetToken, s.now().Add(s.resetTTL)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetToken, user.Username); err != nil {
		log := logger.Log.WithField("user_id", user.ID)
		log.WithError(err).Error("Failed to send password reset email")
		if clearErr := s.userRepo.ClearResetToken(context.WithoutCancel(ctx), user.ID); clearErr != nil {
			log.WithError(clearErr).Error("Failed to clear reset token after send failure")
		}
		return fmt.Errorf("%w: %v", ErrResetEmailFailed, err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"token":   logger.Fingerprint(resetToken),
	}).Info("Password reset email sent")
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token. A matched
// token is consumed whether or not the reset goes through.
func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (err error) {
	defer func() { metrics.ObserveAuth("reset_password", err) }()

	// Checked before the lookup so a rejected password leaves the token usable.
	if err := checkPasswordLength(req.NewPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetUserByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	log := logger.Log.WithField("user_id", user.ID)

	if user.ResetTokenExpiry == nil || !s.now().Before(*user.ResetTokenExpiry) {
		if err := s.userRepo.ClearResetToken(ctx, user.ID); err != nil {
			log.WithError(err).Error("Failed to clear expired reset token")
		}
		log.Info("Password reset rejected, token expired")
		return ErrResetTokenExpired
	}

	hash, err := s.HashPassword(req.NewPassword)
	if err != nil {
		if clearErr := s.userRepo.ClearResetToken(ctx, user.ID); clearErr != nil {
			log.WithError(clearErr).Error("Failed to clear reset token")
		}
		return err
	}

	ok, err := s.userRepo.ResetPassword(ctx, user.ID, req.Token, hash)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	if !ok {
		// Another request consumed the token first.
		return ErrInvalidResetToken
	}
	log.Info("Password reset completed")
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int, req model.ChangePasswordRequest) (err error) {
	defer func() { metrics.ObserveAuth("change_password", err) }()

	if err := checkPasswordLength(req.NewPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if !s.CheckPasswordHash(req.CurrentPassword, user.Password) {
		return ErrIncorrectPassword
	}

	hash, err := s.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	logger.Log.WithField("user_id", userID).Info("Password changed")
	return nil
}

// waitUntil blocks until deadline or until ctx ends, whichever comes first.
func waitUntil(ctx context.Context, deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *model.User) (*model.AuthResponse, error) {
	sub := subjectOf(user)
	access, err := s.issuer.IssueAccess(sub)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(sub)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Add(ctx, refresh, s.issuer.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("failed to record refresh token: %w", err)
	}
	return &model.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Summary(),
	}, nil
}

func (s *AuthService) sendWelcome(userID int, email, username string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), welcomeMailTimeout)
		defer cancel()
		if err := s.mailer.SendWelcome(ctx, email, username); err != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("Failed to send welcome email")
		}
	}()
}

func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("lighthouse-unknown-user"), s.bcryptCost)
		if err == nil {
			s.dummyHash = string(hash)
		}
	})
	return s.dummyHash
}

func subjectOf(user *model.User) token.Subject {
	return token.Subject{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	}
}

// generateResetToken returns 32 random bytes as lowercase hex.
func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

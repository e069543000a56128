// Package token issues and verifies the signed access and refresh tokens.
package token

import (
	"errors"
	"fmt"
	"lighthouse-api/model"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects which secret and lifetime a token is signed and verified with.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
)

// Subject is the identity a token pair is issued for.
type Subject struct {
	UserID   int
	Email    string
	Username string
	Role     string
}

// Config holds the signing material. Access and refresh secrets must differ so
// that one leaked secret cannot mint the other kind of token.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.cfg.RefreshTTL
}

func (i *Issuer) IssueAccess(sub Subject) (string, error) {
	return i.issue(sub, Access)
}

func (i *Issuer) IssueRefresh(sub Subject) (string, error) {
	return i.issue(sub, Refresh)
}

func (i *Issuer) issue(sub Subject, kind Kind) (string, error) {
	secret, ttl := i.material(kind)
	now := i.now()

	claims := &model.AppClaims{
		UserID:   sub.UserID,
		Email:    sub.Email,
		Username: sub.Username,
		Role:     sub.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(sub.UserID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tokenString against the secret for kind.
// It returns ErrExpired for a well-signed token past its expiry and
// ErrInvalidSignature for anything else that does not verify.
func (i *Issuer) Verify(tokenString string, kind Kind) (*model.AppClaims, error) {
	secret, _ := i.material(kind)
	claims := &model.AppClaims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	tok, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !tok.Valid || claims.UserID == 0 {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func (i *Issuer) material(kind Kind) ([]byte, time.Duration) {
	if kind == Refresh {
		return []byte(i.cfg.RefreshSecret), i.cfg.RefreshTTL
	}
	return []byte(i.cfg.AccessSecret), i.cfg.AccessTTL
}
